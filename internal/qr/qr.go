// Package qr writes the QR images players scan to claim a card.
package qr

import (
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

type Generator struct {
	baseURL string
	dir     string
}

// NewGenerator makes codes pointing at baseURL/<number>, saved under dir.
func NewGenerator(baseURL, dir string) *Generator {
	if dir == "" {
		dir = "."
	}
	return &Generator{baseURL: strings.TrimRight(baseURL, "/"), dir: dir}
}

// MakeCode writes the QR image for one card number and returns the file name.
func (g *Generator) MakeCode(number int) (string, error) {
	target := g.baseURL + "/" + strconv.Itoa(number)
	name := sanitize(g.baseURL) + "_" + strconv.Itoa(number) + ".png"
	path := filepath.Join(g.dir, name)
	if err := qrcode.WriteFile(target, qrcode.Medium, 256, path); err != nil {
		return "", fmt.Errorf("write qr code: %w", err)
	}
	return name, nil
}

func sanitize(u string) string {
	r := strings.NewReplacer("https://", "", "http://", "", "/", "_", ":", "")
	return r.Replace(u)
}
