//go:build !unix

package discovery

import "os"

func checkReadWrite(address string) error {
	f, err := os.OpenFile(address, os.O_RDWR, 0)
	if err != nil {
		return err
	}
	return f.Close()
}
