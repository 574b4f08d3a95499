package wire

// Result is the peer's reply to one command. Error is present only on
// failure. A capture reply carries its image either as raw bytes (base64
// in the frame) or as a remote reference URL; the two are mutually
// exclusive in practice, though nothing here enforces that.
type Result struct {
	Success  bool   `json:"success"`
	Error    string `json:"error,omitempty"`
	Image    []byte `json:"image,omitempty"`
	ImageURL string `json:"image_url,omitempty"`
}

// HasImage reports whether the reply carried image data in either form.
func (r *Result) HasImage() bool {
	return len(r.Image) > 0 || r.ImageURL != ""
}
