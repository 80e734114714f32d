//go:build unix

package discovery

import "golang.org/x/sys/unix"

func checkReadWrite(address string) error {
	return unix.Access(address, unix.R_OK|unix.W_OK)
}
