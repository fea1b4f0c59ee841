package models

// DefaultImageType is assumed when a request does not declare its MIME type
const DefaultImageType = "image/jpeg"

// AnalysisRequest represents a request for label analysis.
// Exactly one of ImageBase64 or ImageURL must be set; ImageBase64 may carry a
// data URL prefix.
type AnalysisRequest struct {
	ImageBase64 string `json:"image_base64"`
	ImageType   string `json:"image_type,omitempty"`
	ImageURL    string `json:"image_url,omitempty"`
}

// MIMEType returns the declared image type or the default
func (r AnalysisRequest) MIMEType() string {
	if r.ImageType == "" {
		return DefaultImageType
	}
	return r.ImageType
}

// StatusResponse is returned by the root and liveness endpoints
type StatusResponse struct {
	Message string `json:"message,omitempty"`
	Status  string `json:"status"`
}
