package errors

import (
	"fmt"

	"golang.org/x/text/language"
)

var (
	supportedLanguages = []language.Tag{language.Chinese, language.English}
	languageMatcher    = language.NewMatcher(supportedLanguages)
	englishBase, _     = language.English.Base()
)

// MatchLanguage picks the message language for an Accept-Language header.
// Chinese is the default when nothing matches.
func MatchLanguage(acceptLanguage string) language.Tag {
	tags, _, err := language.ParseAcceptLanguage(acceptLanguage)
	if err != nil || len(tags) == 0 {
		return language.Chinese
	}
	tag, _, _ := languageMatcher.Match(tags...)
	if base, _ := tag.Base(); base == englishBase {
		return language.English
	}
	return language.Chinese
}

type localized struct {
	zh string
	en string
}

var userMessages = map[ErrorType]localized{
	ErrorTypeInvalidImage: {
		zh: "图片格式错误或无法解析，请上传清晰的商品标签图片",
		en: "The image could not be read. Please upload a clear photo of the product label.",
	},
	ErrorTypeAPI: {
		zh: "模型服务调用失败，请检查网络后重试",
		en: "The analysis service could not be reached. Please check your connection and retry.",
	},
	ErrorTypeParse: {
		zh: "数据解析失败，可能是图片类型不正确或 API 返回格式异常，请重新上传清晰的商品标签图片",
		en: "The analysis result could not be parsed. Please upload a clear photo of the product label.",
	},
	ErrorTypeUnknown: {
		zh: "分析失败",
		en: "Analysis failed.",
	},
	ErrorTypeServer: {
		zh: "服务器处理出错",
		en: "The server failed to process the request",
	},
}

// UserMessage renders the caller-facing message for a failure category.
// A non-empty detail is appended after the localized text.
func UserMessage(t ErrorType, tag language.Tag, detail string) string {
	msg, ok := userMessages[t]
	if !ok {
		msg = userMessages[ErrorTypeUnknown]
	}

	text := msg.zh
	sep := "："
	if base, _ := tag.Base(); base == englishBase {
		text = msg.en
		sep = ": "
	}

	if detail == "" {
		return text
	}
	return fmt.Sprintf("%s%s%s", text, sep, detail)
}

// Recovered converts a recovered panic value into an AppError. The type comes
// from ClassifyMessage and the message is the one for that type.
func Recovered(recovered any, tag language.Tag) *AppError {
	detail := fmt.Sprint(recovered)
	t := ClassifyMessage(detail)
	return &AppError{
		Type:    t,
		Message: UserMessage(t, tag, detail),
		Cause:   fmt.Errorf("panic: %s", detail),
	}
}
