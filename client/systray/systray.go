// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

//go:build cgo || !darwin

// Package systray provides a Tailscale systray application driven by the
// tailscale CLI.
package systray

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"os/user"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"fyne.io/systray"
	"github.com/atotto/clipboard"
	dbus "github.com/godbus/dbus/v5"
	"github.com/mdlayher/sdnotify"
	"github.com/tailtray/tailtray/client/viewmodel"
	"github.com/tailtray/tailtray/types/logger"
	"github.com/toqueteos/webbrowser"
)

var (
	// newMenuDelay is the amount of time to sleep after creating a new menu,
	// but before adding items to it. This works around a bug in some dbus implementations.
	newMenuDelay time.Duration
)

// Menu represents the systray menu and the Model it renders.
type Menu struct {
	// Model supplies the state to render and performs clicked actions.
	Model *viewmodel.Model

	// Logf logs menu events. If nil, log.Printf is used.
	Logf logger.Logf

	// PollInterval is how often status is refreshed.
	// Zero means status is only queried at startup and after actions.
	PollInterval time.Duration

	// OpenWindow, if non-nil, opens the status window. The menu item
	// is hidden otherwise.
	OpenWindow func() error

	mu sync.Mutex // protects the fields below

	bgCtx    context.Context // ctx for background tasks not involving menu item clicks
	bgCancel context.CancelFunc

	opts     layoutOptions
	rendered []entry // menu currently shown
	icon     string  // name of the icon currently shown
	tooltip  string

	rebuildCh chan struct{} // triggers a menu rebuild
	actionCh  chan entry    // clicked entries

	eventCancel context.CancelFunc // cancel eventLoop

	notificationIcon *os.File // icon used for desktop notifications

	sd *sdNotifier // nil unless run as a systemd notify service

	stateLogf logger.Logf // logs the tooltip when it changes
}

func (menu *Menu) logf(format string, args ...any) {
	if menu.Logf != nil {
		menu.Logf(format, args...)
		return
	}
	log.Printf(format, args...)
}

// Run starts the systray menu and blocks until the menu exits or ctx
// is done.
func (menu *Menu) Run(ctx context.Context) error {
	if menu.Model == nil {
		return errors.New("systray: nil Model")
	}
	menu.init(ctx)

	// exit cleanly on SIGINT and SIGTERM
	go func() {
		interrupt := make(chan os.Signal, 1)
		signal.Notify(interrupt, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(interrupt)
		select {
		case <-interrupt:
			systray.Quit()
		case <-ctx.Done():
			systray.Quit()
		case <-menu.bgCtx.Done():
		}
	}()

	systray.Run(menu.onReady, menu.onExit)
	return nil
}

func (menu *Menu) init(ctx context.Context) {
	menu.mu.Lock()
	defer menu.mu.Unlock()
	if menu.bgCtx != nil {
		// already initialized
		return
	}

	menu.rebuildCh = make(chan struct{}, 1)
	menu.actionCh = make(chan entry)
	menu.opts = layoutOptions{hasWindow: menu.OpenWindow != nil}
	if u, err := user.Current(); err == nil {
		menu.opts.user = u.Username
	}

	// dbus wants a file path for notification icons, so copy to a temp file.
	menu.notificationIcon, _ = os.CreateTemp("", "tailtray.png")
	if menu.notificationIcon != nil {
		io.Copy(menu.notificationIcon, connected.renderWithBorder(3))
	}

	menu.sd = newSDNotifier(menu.logf)
	menu.stateLogf = logger.LogOnChange(menu.logf, time.Hour, time.Now)
	menu.bgCtx, menu.bgCancel = context.WithCancel(ctx)
	menu.Model.Subscribe(menu.onState)
}

func init() {
	if runtime.GOOS != "linux" {
		// so far, these tweaks are only needed on Linux
		return
	}

	desktop := strings.ToLower(os.Getenv("XDG_CURRENT_DESKTOP"))
	switch desktop {
	case "kde":
		// KDE doesn't need a delay, and actually won't render submenus
		// if we delay for more than about 400µs.
		newMenuDelay = 0
	default:
		// Add a slight delay to ensure the menu is created before adding items.
		//
		// Systray implementations that use libdbusmenu sometimes process messages out of order,
		// resulting in errors such as:
		//    (waybar:153009): LIBDBUSMENU-GTK-WARNING **: 18:07:11.551: Children but no menu, someone's been naughty with their 'children-display' property: 'submenu'
		//
		// See also: https://github.com/fyne-io/systray/issues/12
		newMenuDelay = 10 * time.Millisecond
	}
}

// onReady is called by the systray package when the menu is ready to be built.
func (menu *Menu) onReady() {
	menu.logf("starting")
	if os.Getuid() == 0 || os.Getuid() != os.Geteuid() || os.Getenv("SUDO_USER") != "" || os.Getenv("DOAS_USER") != "" {
		fmt.Fprintln(os.Stderr, `
It appears that you might be running the tray with sudo/doas.
This can lead to issues with D-Bus, and should be avoided.

The tray should be run with the same user as your desktop session,
after allowing that user to manage Tailscale:

sudo tailscale set --operator=$USER
tailtray tray`)
	}
	setAppIcon(disconnected)
	menu.rebuild()
	menu.sd.notify(sdnotify.Ready)

	go func() {
		if err := menu.Model.Run(menu.bgCtx, menu.PollInterval); err != nil && !errors.Is(err, context.Canceled) {
			menu.logf("poll: %v", err)
		}
	}()
}

// onState is called by the Model with each new state. It requests a
// rebuild only if the menu would look different, so that polling does
// not close a menu the user has open.
func (menu *Menu) onState(s viewmodel.State) {
	menu.mu.Lock()
	entries := layout(s, menu.opts)
	icon, tip := trayIcon(s)
	changed := !equalEntries(entries, menu.rendered) || icon.name != menu.icon || tip != menu.tooltip
	menu.mu.Unlock()

	if changed {
		select {
		case menu.rebuildCh <- struct{}{}:
		default:
		}
	}
}

// rebuild the systray menu based on the current Model state.
//
// We currently rebuild the entire menu because it is not easy to update the existing menu.
// You cannot iterate over the items in a menu, nor can you remove some items like separators.
// So for now we rebuild the whole thing, and can optimize this later if needed.
func (menu *Menu) rebuild() {
	menu.mu.Lock()
	defer menu.mu.Unlock()

	if menu.eventCancel != nil {
		menu.eventCancel()
	}
	ctx, cancel := context.WithCancel(menu.bgCtx)
	menu.eventCancel = cancel

	s := menu.Model.Snapshot()
	menu.rendered = layout(s, menu.opts)
	icon, tip := trayIcon(s)
	menu.icon, menu.tooltip = icon.name, tip

	systray.ResetMenu()

	// delay to prevent race setting icon on first start
	time.Sleep(newMenuDelay)
	setTooltip(tip)
	setAppIcon(icon)
	menu.sd.notify(sdnotify.Statusf("%s", tip))
	menu.stateLogf("state: %s", strings.ReplaceAll(tip, "\n", "; "))

	menu.render(ctx, nil, menu.rendered)

	go menu.eventLoop(ctx)
}

// render adds entries to the menu, under parent if non-nil.
func (menu *Menu) render(ctx context.Context, parent *systray.MenuItem, entries []entry) {
	for _, e := range entries {
		var item *systray.MenuItem
		switch {
		case e.kind == kindSeparator && parent == nil:
			systray.AddSeparator()
			continue
		case e.kind == kindSeparator:
			parent.AddSeparator()
			continue
		case e.kind == kindCheckbox && parent == nil:
			item = systray.AddMenuItemCheckbox(e.title, e.tooltip, e.checked)
		case e.kind == kindCheckbox:
			item = parent.AddSubMenuItemCheckbox(e.title, e.tooltip, e.checked)
		case parent == nil:
			item = systray.AddMenuItem(e.title, e.tooltip)
		default:
			item = parent.AddSubMenuItem(e.title, e.tooltip)
		}
		if e.disabled {
			item.Disable()
		}
		if len(e.children) > 0 {
			time.Sleep(newMenuDelay)
			menu.render(ctx, item, e.children)
		}
		if e.action != actNone {
			onClick(ctx, item, func(ctx context.Context) {
				select {
				case <-ctx.Done():
				case menu.actionCh <- e:
				}
			})
		}
	}
}

// setAppIcon sets the systray icon.
func setAppIcon(icon tsLogo) {
	systray.SetIcon(icon.iconBytes())
}

// setTooltip sets the tooltip text for the systray icon.
func setTooltip(text string) {
	if runtime.GOOS == "darwin" || runtime.GOOS == "windows" {
		systray.SetTooltip(text)
	} else {
		// on Linux, SetTitle actually sets the tooltip
		systray.SetTitle(text)
	}
}

// eventLoop is the main event loop for handling click events on menu items
// and responding to state changes.
// This method does not return until ctx.Done is closed.
func (menu *Menu) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-menu.rebuildCh:
			menu.rebuild()
		case e := <-menu.actionCh:
			menu.handle(e)
		}
	}
}

// handle performs the action of a clicked entry.
func (menu *Menu) handle(e entry) {
	m := menu.Model
	switch e.action {
	case actConnect:
		menu.do("connect", m.Connect)
	case actDisconnect:
		menu.do("disconnect", m.Disconnect)
	case actRefresh:
		menu.do("refresh", m.Refresh)
	case actSetExitNode:
		menu.logf("set exit node: %q", e.arg)
		menu.do("set exit node", func(ctx context.Context) error {
			return m.SetExitNode(ctx, e.arg)
		})
	case actLANAccess:
		allow, _ := strconv.ParseBool(e.arg)
		menu.do("allow LAN access", func(ctx context.Context) error {
			return m.SetExitNodeAllowLANAccess(ctx, allow)
		})
	case actSetOperator:
		menu.do("set operator", func(ctx context.Context) error {
			return m.SetOperator(ctx, e.arg)
		})
	case actCopyIP:
		menu.copyIP(e.name, e.arg)
	case actOpenURL:
		if err := webbrowser.Open(e.arg); err != nil {
			menu.logf("opening %s: %v", e.arg, err)
		}
	case actOpenWindow:
		if menu.OpenWindow == nil {
			return
		}
		if err := menu.OpenWindow(); err != nil {
			menu.logf("opening status window: %v", err)
			menu.sendNotification("Tailscale", "Could not open the status window.")
		}
	case actQuit:
		systray.Quit()
	}
}

// do runs fn in the background, reporting failures as notifications.
// The Model publishes the outcome, which triggers a rebuild.
func (menu *Menu) do(what string, fn func(context.Context) error) {
	go func() {
		err := fn(menu.bgCtx)
		switch {
		case err == nil:
		case errors.Is(err, viewmodel.ErrBusy):
			menu.logf("%s: %v", what, err)
		case errors.Is(err, context.Canceled):
		default:
			menu.logf("%s: %v", what, err)
			menu.sendNotification("Tailscale", viewmodel.UserMessage(err))
		}
	}()
}

// onClick registers a click handler for a menu item.
func onClick(ctx context.Context, item *systray.MenuItem, fn func(ctx context.Context)) {
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case <-item.ClickedCh:
				fn(ctx)
			}
		}
	}()
}

// copyIP copies ip to the clipboard and sends a notification with the
// copied value.
func (menu *Menu) copyIP(name, ip string) {
	if ip == "" {
		return
	}
	if err := clipboard.WriteAll(ip); err != nil {
		menu.logf("clipboard error: %v", err)
		return
	}
	menu.sendNotification(fmt.Sprintf("Copied Address for %v", name), ip)
}

// sendNotification sends a desktop notification with the given title and content.
func (menu *Menu) sendNotification(title, content string) {
	conn, err := dbus.SessionBus()
	if err != nil {
		menu.logf("dbus: %v", err)
		return
	}
	var iconPath string
	if menu.notificationIcon != nil {
		iconPath = menu.notificationIcon.Name()
	}
	timeout := 3 * time.Second
	obj := conn.Object("org.freedesktop.Notifications", "/org/freedesktop/Notifications")
	call := obj.Call("org.freedesktop.Notifications.Notify", 0, "Tailscale", uint32(0),
		iconPath, title, content, []string{}, map[string]dbus.Variant{}, int32(timeout.Milliseconds()))
	if call.Err != nil {
		menu.logf("dbus: %v", call.Err)
	}
}

// onExit is called by the systray package when the menu is exiting.
func (menu *Menu) onExit() {
	menu.logf("exiting")
	menu.mu.Lock()
	defer menu.mu.Unlock()
	if menu.bgCancel != nil {
		menu.bgCancel()
	}
	if menu.eventCancel != nil {
		menu.eventCancel()
	}
	if menu.notificationIcon != nil {
		menu.notificationIcon.Close()
		os.Remove(menu.notificationIcon.Name())
	}
	menu.sd.notify(sdnotify.Stopping)
	menu.sd.close()
}
