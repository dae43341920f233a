package service

import "github.com/pkg/errors"

func kindFromSysname(sysname string) (Kind, error) {
	switch sysname {
	case "Linux":
		return Linux, nil
	case "Darwin":
		return Mac, nil
	default:
		return 0, errors.Wrapf(ErrUnsupportedPlatform, "kernel %q", sysname)
	}
}
