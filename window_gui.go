// SPDX-License-Identifier: MIT
//go:build gui

package main

import (
	"panadapter/internal/config"
	"panadapter/internal/display"
	"panadapter/internal/display/window"
)

func openWindow(cfg *config.Config, pal *display.Palette) (frontend, error) {
	return window.New(cfg.Display.Width, cfg.Display.Height, cfg.Display.Scale, pal), nil
}
