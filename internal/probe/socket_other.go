//go:build !unix

package probe

import "github.com/postalsys/echoprobe/internal/icmp"

func openRawSocket(icmp.Family) (Socket, error) {
	return nil, ErrUnsupported
}
