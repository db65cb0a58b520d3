package transform

// OutputFormatFor returns the mime type a derived file of a source with
// sourceMime should be written as. With convertToAVIF, JPEG and PNG map to
// AVIF. The second result reports whether the engine can encode that
// format; when it cannot, callers keep the source format.
func OutputFormatFor(sourceMime string, convertToAVIF bool) (string, bool) {
	switch sourceMime {
	case "image/jpeg", "image/png":
		if convertToAVIF {
			return "image/avif", false
		}
		return sourceMime, true
	case "image/gif", "image/tiff", "image/bmp":
		return sourceMime, true
	case "image/webp":
		return "image/png", true
	}
	return sourceMime, false
}
