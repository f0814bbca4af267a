package utils

import (
	"fmt"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/iliyamo/cruise-services/internal/model"
)

// BoardingPassPayload is the text encoded in a boarding pass QR code.
func BoardingPassPayload(b model.Booking) string {
	var primary string
	for _, p := range b.Passengers {
		if p.IsPrimary {
			primary = strings.TrimSpace(p.FirstName + " " + p.LastName)
			break
		}
	}
	if primary == "" && len(b.Passengers) > 0 {
		primary = strings.TrimSpace(b.Passengers[0].FirstName + " " + b.Passengers[0].LastName)
	}
	return fmt.Sprintf("%s|%s|%s|%s|cabin %s deck %s|pax %d|%s",
		b.Reference,
		b.Cruise.ShipName,
		b.Cruise.CruiseCode,
		b.Cruise.DepartureDate.UTC().Format("2006-01-02"),
		b.Cabin.Number,
		b.Cabin.Deck,
		len(b.Passengers),
		primary,
	)
}

// BoardingPassPNG renders the boarding pass QR code as a PNG image.
func BoardingPassPNG(b model.Booking, size int) ([]byte, error) {
	if size < 64 {
		size = 64
	}
	png, err := qrcode.Encode(BoardingPassPayload(b), qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode boarding pass: %w", err)
	}
	return png, nil
}
