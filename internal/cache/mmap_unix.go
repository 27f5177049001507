//go:build unix

package cache

import (
	"fmt"
	"os"
	"unsafe"

	"golang.org/x/sys/unix"

	"groupcoh/domain/core"
)

type mmapStore struct {
	region []byte
}

func (m *mmapStore) release() error {
	if m.region == nil {
		return nil
	}
	err := unix.Munmap(m.region)
	m.region = nil
	return err
}

// allocate maps an unlinked scratch file in dir. The file disappears from the
// directory immediately; its blocks are returned when the mapping is removed.
func allocate(dir string, n int) ([]complex64, backing, error) {
	size := n * 8

	f, err := os.CreateTemp(dir, fmt.Sprintf("groupcoh-%s-*.wt", core.NewID()))
	if err != nil {
		return nil, nil, err
	}
	defer f.Close()
	defer os.Remove(f.Name())

	if err := f.Truncate(int64(size)); err != nil {
		return nil, nil, err
	}

	region, err := unix.Mmap(int(f.Fd()), 0, size, unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
	if err != nil {
		return nil, nil, fmt.Errorf("mmap %s: %w", f.Name(), err)
	}

	data := unsafe.Slice((*complex64)(unsafe.Pointer(&region[0])), n)
	return data, &mmapStore{region: region}, nil
}
