package service

// DetectKind returns Windows.
func DetectKind() (Kind, error) {
	return Windows, nil
}
