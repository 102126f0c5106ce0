//go:build linux

package platform

import (
	"fmt"
	"log"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"sync"
)

func newPlatform() *Platform {
	return &Platform{
		Supported:   true,
		KeepAlive:   &inhibitKeepAlive{startInhibit: startSystemdInhibit},
		Permissions: &desktopPermissions{},
		Notifier:    newDesktopNotifier(),
	}
}

// inhibitKeepAlive holds a systemd inhibitor lease by keeping a
// systemd-inhibit child process alive for as long as the lease is enabled.
type inhibitKeepAlive struct {
	mu           sync.Mutex
	who, why     string
	stop         func()
	startInhibit func(who, why string) (func(), error)
}

func (k *inhibitKeepAlive) Initialize(title, text, icon string) bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if title == "" {
		title = "tilevault"
	}
	if text == "" {
		text = "background download in progress"
	}
	k.who = title
	k.why = text
	return true
}

func (k *inhibitKeepAlive) Enable() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stop != nil {
		return true
	}
	if k.who == "" {
		// Enable without Initialize is an ordering bug in the caller.
		return false
	}
	stop, err := k.startInhibit(k.who, k.why)
	if err != nil {
		log.Printf("Failed to acquire inhibitor lease: %v", err)
		return false
	}
	k.stop = stop
	return true
}

func (k *inhibitKeepAlive) Disable() {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.stop != nil {
		k.stop()
		k.stop = nil
	}
}

func (k *inhibitKeepAlive) IsEnabled() bool {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.stop != nil
}

func startSystemdInhibit(who, why string) (func(), error) {
	cmd := exec.Command("systemd-inhibit",
		"--what=sleep:idle", "--mode=block",
		"--who="+who, "--why="+why,
		"sleep", "infinity")
	if err := cmd.Start(); err != nil {
		return nil, err
	}
	// Reap the child once it exits so it never lingers as a zombie.
	done := make(chan struct{})
	go func() {
		cmd.Wait()
		close(done)
	}()
	return func() {
		cmd.Process.Kill()
		<-done
	}, nil
}

// desktopPermissions probes for a usable notification setup. Linux has no
// interactive notification-permission prompt, so Request re-probes instead
// of prompting.
type desktopPermissions struct{}

func (p *desktopPermissions) Status(permission string) PermissionStatus {
	if permission != PermissionNotifications {
		return PermissionDenied
	}
	if _, err := exec.LookPath("notify-send"); err != nil {
		return PermissionDenied
	}
	if os.Getenv("DBUS_SESSION_BUS_ADDRESS") == "" {
		return PermissionLimited
	}
	return PermissionGranted
}

func (p *desktopPermissions) Request(permission string) PermissionStatus {
	return p.Status(permission)
}

// desktopNotifier renders the progress notification through notify-send and
// closes it through the org.freedesktop.Notifications bus interface. Each
// slot maps to one server-side notification id that gets replaced in place.
type desktopNotifier struct {
	mu  sync.Mutex
	run func(name string, args ...string) (string, error)
	ids map[int]uint32
}

func newDesktopNotifier() *desktopNotifier {
	return &desktopNotifier{
		run: runCommand,
		ids: make(map[int]uint32),
	}
}

func (n *desktopNotifier) Show(slot int, title, body string, progress, max uint64) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	pct := 0
	if max > 0 {
		pct = int(progress * 100 / max)
	}
	args := []string{
		"--app-name=tilevault",
		"--print-id",
		fmt.Sprintf("--hint=int:value:%d", pct),
	}
	if id, ok := n.ids[slot]; ok {
		args = append(args, fmt.Sprintf("--replace-id=%d", id))
	}
	args = append(args, title, body)

	out, err := n.run("notify-send", args...)
	if err != nil {
		return fmt.Errorf("notify-send failed: %w", err)
	}
	id, err := parseNotifyID(out)
	if err != nil {
		return err
	}
	n.ids[slot] = id
	return nil
}

func (n *desktopNotifier) Cancel(slot int) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	id, ok := n.ids[slot]
	if !ok {
		return nil
	}
	delete(n.ids, slot)

	_, err := n.run("gdbus", "call", "--session",
		"--dest", "org.freedesktop.Notifications",
		"--object-path", "/org/freedesktop/Notifications",
		"--method", "org.freedesktop.Notifications.CloseNotification",
		strconv.FormatUint(uint64(id), 10))
	if err != nil {
		return fmt.Errorf("failed to close notification %d: %w", id, err)
	}
	return nil
}

func runCommand(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	return string(out), err
}

func parseNotifyID(out string) (uint32, error) {
	id, err := strconv.ParseUint(strings.TrimSpace(out), 10, 32)
	if err != nil {
		return 0, fmt.Errorf("unexpected notify-send output %q: %w", out, err)
	}
	return uint32(id), nil
}
