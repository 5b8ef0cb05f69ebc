package trends

import "testing"

func TestInterestTable_Lookup(t *testing.T) {
	table := &InterestTable{
		Keywords: []string{"a", "b"},
		Rows: []InterestRow{
			{Values: []float64{10, 20}},
		},
	}

	idx, ok := table.Lookup("b")
	if !ok || idx != 1 {
		t.Errorf("Expected column 1 for 'b', got %d (ok=%t)", idx, ok)
	}

	if _, ok := table.Lookup("missing"); ok {
		t.Error("Expected lookup miss for unknown keyword")
	}
}

func TestInterestTable_Lookup_EmptyTable(t *testing.T) {
	table := &InterestTable{Keywords: []string{"a"}}

	if _, ok := table.Lookup("a"); ok {
		t.Error("Expected lookup miss on a table without rows")
	}
}

func TestInterestTable_Lookup_ShortRow(t *testing.T) {
	table := &InterestTable{
		Keywords: []string{"a", "b"},
		Rows: []InterestRow{
			{Values: []float64{10}},
		},
	}

	if _, ok := table.Lookup("b"); ok {
		t.Error("Expected lookup miss for a column the rows do not cover")
	}
}

func TestInterestRow_ValueAt(t *testing.T) {
	row := InterestRow{Values: []float64{10, 0}, HasData: []bool{true, false}}

	if v, ok := row.ValueAt(0); !ok || v != 10 {
		t.Errorf("Expected 10 at column 0, got %v (ok=%t)", v, ok)
	}
	if _, ok := row.ValueAt(1); ok {
		t.Error("Expected missing value at column 1")
	}
	if _, ok := row.ValueAt(5); ok {
		t.Error("Expected missing value beyond row width")
	}
}
