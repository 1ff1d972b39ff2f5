// Copyright (c) Tailscale Inc & AUTHORS
// SPDX-License-Identifier: BSD-3-Clause

package systray

import (
	"bufio"
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/tailtray/tailtray/atomicfile"
)

//go:embed tailtray.service
var embedSystemd string

//go:embed tailtray.desktop
var embedFreedesktop string

// InstallStartupScript installs a per-user autostart entry that runs
// `tailtray tray` at login. initSystem is "systemd" or "freedesktop".
func InstallStartupScript(initSystem string) error {
	bin, err := os.Executable()
	if err != nil {
		return fmt.Errorf("failed to find tailtray binary: %w", err)
	}
	configDir, err := userConfigDir()
	if err != nil {
		return err
	}
	switch initSystem {
	case "systemd":
		return installSystemd(os.Stdout, configDir, bin)
	case "freedesktop":
		return installFreedesktop(os.Stdout, configDir, bin)
	default:
		return fmt.Errorf("unsupported init system '%s'", initSystem)
	}
}

func userConfigDir() (string, error) {
	configDir, err := os.UserConfigDir()
	if err != nil {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("unable to locate user home: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}
	return configDir, nil
}

// rewriteKeys returns the lines of tmpl with the values of the keys in
// set replaced.
func rewriteKeys(tmpl string, set map[string]string) []byte {
	var output bytes.Buffer
	scanner := bufio.NewScanner(strings.NewReader(tmpl))
	for scanner.Scan() {
		line := scanner.Text()
		if k, _, ok := strings.Cut(line, "="); ok {
			if v, ok := set[k]; ok {
				line = k + "=" + v
			}
		}
		output.WriteString(line + "\n")
	}
	return output.Bytes()
}

func installSystemd(w io.Writer, configDir, bin string) error {
	unit := rewriteKeys(embedSystemd, map[string]string{
		"ExecStart": bin + " tray",
	})

	systemdDir := filepath.Join(configDir, "systemd", "user")
	if err := os.MkdirAll(systemdDir, 0o755); err != nil {
		return fmt.Errorf("failed creating systemd user dir: %w", err)
	}

	serviceFile := filepath.Join(systemdDir, "tailtray.service")
	if err := atomicfile.WriteFile(serviceFile, unit, 0o644); err != nil {
		return fmt.Errorf("failed writing systemd user service: %w", err)
	}

	fmt.Fprintf(w, "Successfully installed systemd service to: %s\n", serviceFile)
	fmt.Fprintln(w, "To enable and start the service, run:")
	fmt.Fprintln(w, "  systemctl --user daemon-reload")
	fmt.Fprintln(w, "  systemctl --user enable --now tailtray")
	return nil
}

func installFreedesktop(w io.Writer, configDir, bin string) error {
	// Install icon, and use it if it works, and if not change to some generic
	// network/vpn icon.
	iconName := "tailtray"
	if err := installIcon(); err != nil {
		iconName = "network-transmit"
		fmt.Fprintf(w, "unable to install icon, continuing without: %v\n", err)
	}

	desktop := rewriteKeys(embedFreedesktop, map[string]string{
		"Exec":    bin + " tray",
		"TryExec": bin,
		"Icon":    iconName,
	})

	autostartDir := filepath.Join(configDir, "autostart")
	if err := os.MkdirAll(autostartDir, 0o755); err != nil {
		return fmt.Errorf("failed creating freedesktop autostart dir: %w", err)
	}
	desktopFile := filepath.Join(autostartDir, "tailtray.desktop")
	if err := atomicfile.WriteFile(desktopFile, desktop, 0o644); err != nil {
		return fmt.Errorf("unable to create desktop file: %w", err)
	}

	if _, err := exec.LookPath("desktop-file-validate"); err == nil {
		if out, err := exec.Command("desktop-file-validate", desktopFile).CombinedOutput(); err != nil {
			fmt.Fprintf(w, "warning: %s: %s\n", desktopFile, bytes.TrimSpace(out))
		}
	}

	fmt.Fprintf(w, "Successfully installed freedesktop autostart entry to: %s\n", desktopFile)
	fmt.Fprintln(w, "The tray will run upon logging in.")
	return nil
}

// installIcon installs the connected logo as the "tailtray" icon using
// the freedesktop tools.
func installIcon() error {
	if _, err := exec.LookPath("xdg-icon-resource"); err != nil {
		return err
	}
	tmpDir, err := os.MkdirTemp("", "tailtray-icon")
	if err != nil {
		return fmt.Errorf("unable to make tmpDir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	var errs []error
	installed := false
	for _, size := range []int{0, 3} {
		img := connected.renderWithBorder(size)
		// The image is 8+2*size dot radii of 25px each.
		px := fmt.Sprint(25 * (8 + 2*size))
		pngPath := filepath.Join(tmpDir, "tailtray-"+px+".png")
		if err := os.WriteFile(pngPath, img.Bytes(), 0o644); err != nil {
			errs = append(errs, fmt.Errorf("unable to create png: %w", err))
			continue
		}
		cmd := exec.Command("xdg-icon-resource", "install", "--size", px, "--novendor", pngPath, "tailtray")
		if output, err := cmd.CombinedOutput(); err != nil {
			errs = append(errs, fmt.Errorf("unable to install %spx png: %w - %s", px, err, output))
			continue
		}
		installed = true
	}
	if !installed {
		return errors.Join(errs...)
	}
	return nil
}
