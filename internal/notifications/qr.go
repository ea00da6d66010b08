package notifications

import (
	"errors"

	"github.com/skip2/go-qrcode"
)

const qrSize = 256

// RefIDQRCode renders the order reference as a PNG for the receipt.
func RefIDQRCode(refID string) ([]byte, error) {
	if refID == "" {
		return nil, errors.New("ref id is required")
	}
	return qrcode.Encode(refID, qrcode.Medium, qrSize)
}
