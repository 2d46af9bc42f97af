//go:build !linux

package pins

func openCDev(chip string) (Provider, error) {
	return nil, ErrUnsupported
}
