package domain

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidatePrices(t *testing.T) {
	d := decimal.RequireFromString

	tests := []struct {
		name       string
		original   string
		discounted string
		wantErr    error
	}{
		{name: "discount below original", original: "10.00", discounted: "6.00"},
		{name: "discount equals original", original: "10.00", discounted: "10.00"},
		{name: "discount above original", original: "10.00", discounted: "10.01", wantErr: ErrInvalidPrice},
		{name: "zero original", original: "0", discounted: "0", wantErr: ErrInvalidPrice},
		{name: "zero discount", original: "5", discounted: "0", wantErr: ErrInvalidPrice},
		{name: "negative discount", original: "5", discounted: "-1", wantErr: ErrInvalidPrice},
		{name: "sub cent precision", original: "5.001", discounted: "4", wantErr: ErrInvalidPrice},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidatePrices(d(tt.original), d(tt.discounted))
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}
