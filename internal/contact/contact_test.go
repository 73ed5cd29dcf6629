package contact

import (
	"errors"
	"testing"
)

func TestNormalize(t *testing.T) {
	n := NewNormalizer("ID")
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"local mobile", "0812-3456-7890", "+6281234567890", false},
		{"local mobile with spaces", "0812 3456 7890", "+6281234567890", false},
		{"international", "+62 812 3456 7890", "+6281234567890", false},
		{"already E.164", "+6281234567890", "+6281234567890", false},
		{"foreign number", "+1 650 253 0000", "+16502530000", false},
		{"empty", "", "", true},
		{"email", "kades@desa.id", "", true},
		{"too short", "0812", "", true},
		{"letters", "nomor saya", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.Normalize(tt.input)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidPhone) {
					t.Fatalf("Normalize(%q) error = %v, want ErrInvalidPhone", tt.input, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Normalize(%q): %v", tt.input, err)
			}
			if got != tt.want {
				t.Errorf("Normalize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestWhatsAppLink(t *testing.T) {
	n := NewNormalizer("")
	if got := n.WhatsAppLink("081234567890"); got != "https://wa.me/6281234567890" {
		t.Fatalf("link = %q", got)
	}
	if got := n.WhatsAppLink("bukan nomor"); got != "" {
		t.Fatalf("link for invalid number = %q", got)
	}
}
