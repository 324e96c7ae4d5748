package presence

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/godbus/dbus/v5"
)

const (
	notificationsDest   = "org.freedesktop.Notifications"
	notificationsPath   = "/org/freedesktop/Notifications"
	notifyMethod        = notificationsDest + ".Notify"
	closeMethod         = notificationsDest + ".CloseNotification"
	defaultAppName      = "recbridge"
	defaultIcon         = "audio-input-microphone"
	noExpiry      int32 = 0
)

// caller is the subset of dbus.BusObject the notifier uses
type caller interface {
	Call(method string, flags dbus.Flags, args ...interface{}) *dbus.Call
}

// DBusNotifier shows a resident desktop notification through the
// freedesktop notification service. Repeated Start calls replace the
// same notification in place.
type DBusNotifier struct {
	appName  string
	icon     string
	channels *Channels
	channel  string

	mu     sync.Mutex
	obj    caller
	conn   *dbus.Conn
	id     uint32
	dialFn func() (*dbus.Conn, error)
}

// NewDBusNotifier creates a notifier posting to the given channel.
// The session bus is dialled on first use.
func NewDBusNotifier(channels *Channels, channelID string) *DBusNotifier {
	if channels == nil {
		channels = NewChannels()
	}
	if channelID == "" {
		channelID = DefaultChannelID
	}
	return &DBusNotifier{
		appName:  defaultAppName,
		icon:     defaultIcon,
		channels: channels,
		channel:  channelID,
		dialFn:   func() (*dbus.Conn, error) { return dbus.ConnectSessionBus() },
	}
}

// Start posts the notification or updates the existing one
func (n *DBusNotifier) Start(title, text string) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	obj, err := n.object()
	if err != nil {
		return err
	}

	channel := n.channels.Get(n.channel)
	hints := map[string]dbus.Variant{
		"resident": dbus.MakeVariant(true),
		"urgency":  dbus.MakeVariant(channel.Urgency()),
		"category": dbus.MakeVariant("x-recbridge." + channel.ID),
	}

	call := obj.Call(notifyMethod, 0,
		n.appName, n.id, n.icon, title, text, []string{}, hints, noExpiry)
	if call.Err != nil {
		return fmt.Errorf("notify failed: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return fmt.Errorf("failed to read notification id: %w", err)
	}
	n.id = id
	return nil
}

// Stop closes the notification if one is showing
func (n *DBusNotifier) Stop() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	if n.id == 0 {
		return nil
	}
	obj, err := n.object()
	if err != nil {
		return err
	}

	id := n.id
	n.id = 0
	if call := obj.Call(closeMethod, 0, id); call.Err != nil {
		return fmt.Errorf("close notification %d failed: %w", id, call.Err)
	}
	return nil
}

// Close releases the session bus connection
func (n *DBusNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.obj = nil
	if n.conn == nil {
		return nil
	}
	err := n.conn.Close()
	n.conn = nil
	return err
}

func (n *DBusNotifier) object() (caller, error) {
	if n.obj != nil {
		return n.obj, nil
	}
	conn, err := n.dialFn()
	if err != nil {
		return nil, fmt.Errorf("failed to connect to session bus: %w", err)
	}
	n.conn = conn
	n.obj = conn.Object(notificationsDest, dbus.ObjectPath(notificationsPath))
	slog.Debug("Connected to notification service", "dest", notificationsDest)
	return n.obj, nil
}
