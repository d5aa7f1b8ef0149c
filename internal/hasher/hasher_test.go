package hasher

import "testing"

func TestFileHash(t *testing.T) {
	// sha256("abc")
	want := "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if got := FileHash([]byte("abc")); got != want {
		t.Errorf("FileHash = %s, want %s", got, want)
	}
	if FileHash([]byte("abc")) == FileHash([]byte("abd")) {
		t.Error("different content must hash differently")
	}
}

func TestRowHash(t *testing.T) {
	tests := []struct {
		name  string
		a, b  []string
		equal bool
	}{
		{"identical", []string{"2024-01-02", "COFFEE", "4.50"}, []string{"2024-01-02", "COFFEE", "4.50"}, true},
		{"surrounding whitespace ignored", []string{" 2024-01-02", "COFFEE "}, []string{"2024-01-02", "COFFEE"}, true},
		{"field boundaries matter", []string{"ab", "c"}, []string{"a", "bc"}, false},
		{"order matters", []string{"a", "b"}, []string{"b", "a"}, false},
		{"amount differs", []string{"COFFEE", "4.50"}, []string{"COFFEE", "4.51"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := RowHash(tt.a...) == RowHash(tt.b...)
			if got != tt.equal {
				t.Errorf("RowHash equality = %v, want %v", got, tt.equal)
			}
		})
	}
}

func TestTransactionID(t *testing.T) {
	id := TransactionID("abc", "jan.csv")
	if len(id) != 32 {
		t.Errorf("len(TransactionID) = %d, want 32", len(id))
	}
	if id != TransactionID("abc", "jan.csv") {
		t.Error("TransactionID must be deterministic")
	}
	if id == TransactionID("abc", "feb.csv") {
		t.Error("TransactionID must depend on source file")
	}
}

func TestNormalizeDescription(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"coffee shop", "COFFEE SHOP"},
		{"  Coffee   Shop \t", "COFFEE SHOP"},
		{"COFFEE SHOP", "COFFEE SHOP"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := NormalizeDescription(tt.input); got != tt.want {
				t.Errorf("NormalizeDescription(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
