package mask

// Resolve maps a source preference onto a concrete selection.
//
// Raw and processed pass through. Auto selects the processed mask when blur, dilate or
// fill-holes is enabled, or when thresholding is enabled at a value other than the default.
// Every consumer (mask export, alpha source, trace source) goes through this function.
func Resolve(source Source, opts Options, defaults Defaults) Selection {
	switch source {
	case SourceRaw:
		return SelectRaw
	case SourceProcessed:
		return SelectProcessed
	}

	if opts.Blur.Enabled || opts.Dilate.Enabled || opts.FillHoles {
		return SelectProcessed
	}
	if opts.Threshold.Enabled && opts.Threshold.Value != defaults.Threshold {
		return SelectProcessed
	}
	return SelectRaw
}
