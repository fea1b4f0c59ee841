package tesseract

import "testing"

func TestSplitLanguages(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"eng+chi_sim", []string{"eng", "chi_sim"}},
		{" eng ", []string{"eng"}},
		{"eng++jpn", []string{"eng", "jpn"}},
		{"", nil},
	}

	for _, tt := range tests {
		got := splitLanguages(tt.in)
		if len(got) != len(tt.want) {
			t.Errorf("splitLanguages(%q) = %v, want %v", tt.in, got, tt.want)
			continue
		}
		for i := range got {
			if got[i] != tt.want[i] {
				t.Errorf("splitLanguages(%q) = %v, want %v", tt.in, got, tt.want)
			}
		}
	}
}

func TestEngineName(t *testing.T) {
	if (&Engine{}).Name() != "tesseract" {
		t.Error("Unexpected engine name")
	}
}
