package selection

import (
	"sync"
	"testing"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Extérieur", "exterieur"},
		{"exterieur", "exterieur"},
		{"  Intérieur  ", "interieur"},
		{"CRÉATIVITÉ", "creativite"},
		{"", ""},
		{"déjà-vu", "deja-vu"},
	}
	for _, tt := range tests {
		if got := Normalize(tt.in); got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestNormalizeFoldsEquivalentTags(t *testing.T) {
	if Normalize("Extérieur") != Normalize("EXTERIEUR") {
		t.Error("accented and plain spellings should compare equal")
	}
}

func TestNormalizeConcurrent(t *testing.T) {
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 200; j++ {
				if got := Normalize("Extérieur"); got != "exterieur" {
					t.Errorf("Normalize = %q, want exterieur", got)
					return
				}
			}
		}()
	}
	wg.Wait()
}
