package dataset

import (
	"reflect"
	"testing"
)

func sales(t *testing.T) *Dataset {
	return build(t, []string{"region", "units", "day"},
		[]string{"north", "10", "2024-01-03"},
		[]string{"south", "", "2024-01-01"},
		[]string{"north", "5", "2024-01-02"},
		[]string{"east", "7", ""},
	)
}

func TestFilter(t *testing.T) {
	ds := sales(t)
	out, err := Filter(ds, In("region", "north", "east"), Range("units", 6, 100))
	if err != nil {
		t.Fatalf("Filter: %v", err)
	}
	region, _, _ := out.Column("region")
	if !reflect.DeepEqual(region.Raw, []string{"north", "east"}) {
		t.Fatalf("region = %q", region.Raw)
	}
	if err := out.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if ds.Rows() != 4 {
		t.Fatal("source dataset mutated")
	}

	num, err := Filter(ds, In("units", "5.0"))
	if err != nil {
		t.Fatalf("Filter numeric In: %v", err)
	}
	if num.Rows() != 1 || num.Columns[0].Raw[0] != "north" {
		t.Fatalf("numeric In rows = %d", num.Rows())
	}
}

func TestFilterErrors(t *testing.T) {
	ds := sales(t)
	if _, err := Filter(ds, In("nope", "x")); err == nil {
		t.Fatal("expected unknown column error")
	}
	if _, err := Filter(ds, Range("region", 0, 1)); err == nil {
		t.Fatal("expected range on textual column error")
	}
	if _, err := Filter(ds, In("units", "ten")); err == nil {
		t.Fatal("expected non-numeric value error")
	}
}

func TestSort(t *testing.T) {
	ds := sales(t)
	asc, err := Sort(ds, SortKey{Column: "units"})
	if err != nil {
		t.Fatalf("Sort: %v", err)
	}
	units, _, _ := asc.Column("units")
	if !reflect.DeepEqual(units.Raw, []string{"5", "7", "10", ""}) {
		t.Fatalf("ascending units = %q", units.Raw)
	}
	desc, _ := Sort(ds, SortKey{Column: "units", Descending: true})
	units, _, _ = desc.Column("units")
	if !reflect.DeepEqual(units.Raw, []string{"10", "7", "5", ""}) {
		t.Fatalf("descending units = %q", units.Raw)
	}
	byDay, _ := Sort(ds, SortKey{Column: "day"})
	region, _, _ := byDay.Column("region")
	if !reflect.DeepEqual(region.Raw, []string{"south", "north", "north", "east"}) {
		t.Fatalf("by day = %q", region.Raw)
	}
	multi, _ := Sort(ds, SortKey{Column: "region"}, SortKey{Column: "units", Descending: true})
	units, _, _ = multi.Column("units")
	if !reflect.DeepEqual(units.Raw, []string{"7", "10", "5", ""}) {
		t.Fatalf("multi-key units = %q", units.Raw)
	}
}

func TestSelect(t *testing.T) {
	ds := sales(t)
	out, err := Select(ds, "units", "region")
	if err != nil {
		t.Fatalf("Select: %v", err)
	}
	if !reflect.DeepEqual(out.Names(), []string{"units", "region"}) {
		t.Fatalf("names = %q", out.Names())
	}
	if _, err := Select(ds, "units", "units"); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := Select(ds, "ghost"); err == nil {
		t.Fatal("expected unknown column error")
	}
}
