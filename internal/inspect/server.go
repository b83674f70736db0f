package inspect

import (
	"errors"
	"fmt"
	"net"
	"os/exec"
	"runtime"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	nfs "github.com/willscott/go-nfs"
	nfshelper "github.com/willscott/go-nfs/helpers"
)

// Server serves a filesystem over NFSv3.
type Server struct {
	listener net.Listener
	port     int
}

// NewServer starts an NFS server for fs on listen, e.g. "127.0.0.1:0".
func NewServer(fs billy.Filesystem, listen string) (*Server, error) {
	listener, err := net.Listen("tcp", listen)
	if err != nil {
		return nil, fmt.Errorf("nfs listen on %s: %w", listen, err)
	}
	handler := nfshelper.NewCachingHandler(nfshelper.NewNullAuthHandler(fs), 1024)
	go func() {
		_ = nfs.Serve(listener, handler)
	}()
	return &Server{listener: listener, port: listener.Addr().(*net.TCPAddr).Port}, nil
}

// Port returns the TCP port the server listens on.
func (s *Server) Port() int { return s.port }

// Close stops accepting connections.
func (s *Server) Close() error { return s.listener.Close() }

// mountPlan lists the commands that attach and detach a read-only mount.
// Unmount commands are tried in order until one succeeds.
type mountPlan struct {
	mount   []string
	unmount [][]string
}

func planMount(goos string, port int, dir string) (mountPlan, error) {
	base := fmt.Sprintf("port=%d,mountport=%d,vers=3,tcp", port, port)
	umount := []string{"sudo", "umount", dir}
	switch goos {
	case "darwin":
		return mountPlan{
			mount:   []string{"sudo", "mount", "-t", "nfs", "-o", base + ",locallocks,noresvport,rdonly", "localhost:/", dir},
			unmount: [][]string{{"diskutil", "unmount", dir}, umount},
		}, nil
	case "linux":
		return mountPlan{
			mount:   []string{"sudo", "mount", "-t", "nfs", "-o", base + ",local_lock=all,nolock,ro", "localhost:/", dir},
			unmount: [][]string{umount},
		}, nil
	default:
		return mountPlan{}, fmt.Errorf("read-only nfs mount unsupported on %s", goos)
	}
}

func runCommand(argv []string) error {
	if out, err := exec.Command(argv[0], argv[1:]...).CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w\n%s", strings.Join(argv, " "), err, out)
	}
	return nil
}

// Mountpoint is a live read-only mount of a Server.
type Mountpoint struct {
	Dir  string
	plan mountPlan
}

// Mount attaches the server read-only at dir. It needs sudo.
func (s *Server) Mount(dir string) (*Mountpoint, error) {
	plan, err := planMount(runtime.GOOS, s.port, dir)
	if err != nil {
		return nil, err
	}
	if err := runCommand(plan.mount); err != nil {
		return nil, fmt.Errorf("mount %s: %w", dir, err)
	}
	return &Mountpoint{Dir: dir, plan: plan}, nil
}

// Unmount detaches the mount.
func (m *Mountpoint) Unmount() error {
	var errs []error
	for _, argv := range m.plan.unmount {
		err := runCommand(argv)
		if err == nil {
			return nil
		}
		errs = append(errs, err)
	}
	return fmt.Errorf("unmount %s: %w", m.Dir, errors.Join(errs...))
}
