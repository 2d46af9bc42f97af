//go:build !linux

package pins

func openRPIO() (Provider, error) {
	return nil, ErrUnsupported
}
