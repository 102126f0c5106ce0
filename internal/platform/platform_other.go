//go:build !linux

package platform

func newPlatform() *Platform {
	return &Platform{Supported: false}
}
