package errors

import (
	stderrors "errors"
	"fmt"
	"strings"
	"testing"

	"golang.org/x/text/language"
)

func TestAppError_WrapsCause(t *testing.T) {
	cause := stderrors.New("unexpected EOF")
	err := NewInvalidImageError("failed to decode image", cause)

	if !stderrors.Is(err, cause) {
		t.Error("Expected AppError to unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "invalid_image") {
		t.Errorf("Expected type in message, got %q", err.Error())
	}
}

func TestTypeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorType
	}{
		{"Nil", nil, ""},
		{"Direct AppError", NewAPIError("call failed", nil), ErrorTypeAPI},
		{"Wrapped AppError", fmt.Errorf("stage: %w", NewParseError("bad", nil)), ErrorTypeParse},
		{"Plain error falls back to keywords", stderrors.New("connection reset by peer"), ErrorTypeAPI},
		{"Plain unclassified error", stderrors.New("nil map"), ErrorTypeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TypeOf(tt.err); got != tt.want {
				t.Errorf("TypeOf() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestIsType(t *testing.T) {
	err := fmt.Errorf("wrapped: %w", NewParseError("boom", nil))
	if !IsType(err, ErrorTypeParse) {
		t.Error("Expected IsType to see through wrapping")
	}
	if IsType(err, ErrorTypeAPI) {
		t.Error("Expected IsType to reject a different type")
	}
	if IsType(stderrors.New("plain"), ErrorTypeParse) {
		t.Error("Expected IsType to reject plain errors")
	}
}

func TestClassifyMessage(t *testing.T) {
	tests := []struct {
		message string
		want    ErrorType
	}{
		{"图片解码失败", ErrorTypeInvalidImage},
		{"failed to decode payload", ErrorTypeInvalidImage},
		{"Image too large", ErrorTypeInvalidImage},
		{"OCR engine crashed", ErrorTypeParse},
		{"网络不可达", ErrorTypeAPI},
		{"连接超时", ErrorTypeAPI},
		{"network unreachable", ErrorTypeAPI},
		{"index out of range", ErrorTypeServer},
	}

	for _, tt := range tests {
		t.Run(tt.message, func(t *testing.T) {
			if got := ClassifyMessage(tt.message); got != tt.want {
				t.Errorf("ClassifyMessage(%q) = %q, want %q", tt.message, got, tt.want)
			}
		})
	}
}

func TestParseErrorType(t *testing.T) {
	if got, ok := ParseErrorType(" Invalid_Image "); !ok || got != ErrorTypeInvalidImage {
		t.Errorf("ParseErrorType() = %q, %v", got, ok)
	}
	if _, ok := ParseErrorType("not_a_label"); ok {
		t.Error("Expected unknown declared type to be rejected")
	}
}

func TestMatchLanguage(t *testing.T) {
	tests := []struct {
		header string
		want   language.Tag
	}{
		{"", language.Chinese},
		{"en-US,en;q=0.9", language.English},
		{"zh-CN,zh;q=0.9,en;q=0.8", language.Chinese},
		{"fr-FR", language.Chinese},
		{"garbage;;;", language.Chinese},
	}

	for _, tt := range tests {
		t.Run(tt.header, func(t *testing.T) {
			if got := MatchLanguage(tt.header); got != tt.want {
				t.Errorf("MatchLanguage(%q) = %v, want %v", tt.header, got, tt.want)
			}
		})
	}
}

func TestUserMessage(t *testing.T) {
	zh := UserMessage(ErrorTypeServer, language.Chinese, "boom")
	if zh != "服务器处理出错：boom" {
		t.Errorf("Unexpected Chinese message %q", zh)
	}

	en := UserMessage(ErrorTypeServer, language.English, "boom")
	if en != "The server failed to process the request: boom" {
		t.Errorf("Unexpected English message %q", en)
	}

	if got := UserMessage(ErrorType("bogus"), language.English, ""); got != "Analysis failed." {
		t.Errorf("Expected unknown types to use the generic message, got %q", got)
	}
}

func TestRecovered(t *testing.T) {
	tests := []struct {
		name      string
		recovered any
		tag       language.Tag
		wantType  ErrorType
		wantText  string
	}{
		{"Network panic", "network connection reset", language.English, ErrorTypeAPI, "could not be reached"},
		{"Image panic", "图片 decode failed", language.Chinese, ErrorTypeInvalidImage, "图片格式错误"},
		{"Unclassified panic", stderrors.New("nil map write"), language.English, ErrorTypeServer, "server failed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Recovered(tt.recovered, tt.tag)
			if err.Type != tt.wantType {
				t.Errorf("Type = %q, want %q", err.Type, tt.wantType)
			}
			if !strings.Contains(err.Message, tt.wantText) {
				t.Errorf("Message %q does not match its type", err.Message)
			}
			if !strings.Contains(err.Message, fmt.Sprint(tt.recovered)) {
				t.Errorf("Message %q lost the panic detail", err.Message)
			}
			if TypeOf(err) != tt.wantType {
				t.Errorf("TypeOf() = %q, want %q", TypeOf(err), tt.wantType)
			}
		})
	}
}
