//go:build !windows

package main

// runAsService always returns false: only Windows has a service manager that
// needs to be talked to.
func runAsService() (bool, error) {
	return false, nil
}
