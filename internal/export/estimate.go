package export

// EstimateSize is a rough output size for the UI. It is a hint only.
func EstimateSize(sourceBytes int, format Format, quality int) int64 {
	q := float64(ClampQuality(quality)) / 100
	var factor float64
	switch format {
	case FormatJPG:
		factor = 0.8 * q
	case FormatWebP:
		factor = 0.6 * q
	default:
		factor = 1.2
	}
	return int64(float64(sourceBytes)*factor + 0.5)
}
