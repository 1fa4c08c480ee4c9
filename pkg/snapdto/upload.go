package snapdto

// PreviewItem is one rasterized PDF page as returned by POST /upload.
// PreviewData is a data URI; the dimensions are the unscaled pixel size
// the detection service expects coordinates in.
type PreviewItem struct {
	PreviewData    string `json:"preview_data"`
	Page           int    `json:"page"`
	OriginalWidth  int    `json:"original_width"`
	OriginalHeight int    `json:"original_height"`
}

type UploadResponse struct {
	Previews []PreviewItem `json:"previews"`
	Error    string        `json:"error,omitempty"`
}
