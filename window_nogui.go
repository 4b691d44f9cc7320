// SPDX-License-Identifier: MIT
//go:build !gui

package main

import (
	"errors"

	"panadapter/internal/config"
	"panadapter/internal/display"
)

func openWindow(*config.Config, *display.Palette) (frontend, error) {
	return nil, errors.New("built without window support, rebuild with -tags gui")
}
