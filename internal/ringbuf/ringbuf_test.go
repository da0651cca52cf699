package ringbuf

import "testing"

func TestInsertAndSum(t *testing.T) {
	rb := New(60)
	base := int64(1000000)

	rb.InsertValue(base, 3)
	rb.InsertValue(base+1, 2)
	rb.InsertValue(base+2, 1)

	if got := rb.UpdateAndGetValues(base+2, 3); got != 6 {
		t.Errorf("expected 6 over 3s window, got %d", got)
	}
	if got := rb.UpdateAndGetValues(base+2, 1); got != 1 {
		t.Errorf("expected 1 over 1s window, got %d", got)
	}
}

func TestStaleSlotsZeroed(t *testing.T) {
	rb := New(10)
	base := int64(2000000)

	rb.InsertValue(base, 5)
	// A full span later the old value must be gone.
	if got := rb.UpdateAndGetValues(base+20, 10); got != 0 {
		t.Errorf("expected 0 after wrap, got %d", got)
	}
}

func TestPartialAdvance(t *testing.T) {
	rb := New(10)
	base := int64(3000000)

	rb.InsertValue(base, 4)
	rb.InsertValue(base+3, 1)

	// base is still inside the window.
	if got := rb.UpdateAndGetValues(base+3, 10); got != 5 {
		t.Errorf("expected 5, got %d", got)
	}
	// Narrow window excludes the first insert.
	if got := rb.UpdateAndGetValues(base+3, 2); got != 1 {
		t.Errorf("expected 1, got %d", got)
	}
}

func TestSpanClamped(t *testing.T) {
	rb := New(5)
	base := int64(4000000)
	rb.InsertValue(base, 7)
	if got := rb.UpdateAndGetValues(base, 100); got != 7 {
		t.Errorf("expected 7 with clamped span, got %d", got)
	}
}
