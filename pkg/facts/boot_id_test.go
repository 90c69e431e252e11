package facts

import "testing"

func TestReadBootID_ReturnsNonEmptyOnLinux(t *testing.T) {
	id := ReadBootID()
	if id == "" {
		t.Skip("boot id file not present in this environment")
	}
	if len(id) < 8 {
		t.Errorf("unexpectedly short boot id: %q", id)
	}
}
