package model

import (
	"reflect"
	"testing"
)

func TestParseDescription_NameAndExtraLines(t *testing.T) {
	name, extra := ParseDescription("Jane Doe\nUtah Salt Lake Mission\n2023–2025")

	if name != "Jane Doe" {
		t.Errorf("name = %q, want %q", name, "Jane Doe")
	}
	want := []string{"Utah Salt Lake Mission", "2023–2025"}
	if !reflect.DeepEqual(extra, want) {
		t.Errorf("extra = %v, want %v", extra, want)
	}
}

func TestParseDescription_Empty(t *testing.T) {
	name, extra := ParseDescription("")
	if name != "" {
		t.Errorf("name = %q, want empty", name)
	}
	if len(extra) != 0 {
		t.Errorf("extra = %v, want empty", extra)
	}
}

func TestParseDescription_WhitespaceOnly(t *testing.T) {
	name, extra := ParseDescription("  \n\t\n   ")
	if name != "" {
		t.Errorf("name = %q, want empty", name)
	}
	if len(extra) != 0 {
		t.Errorf("extra = %v, want empty", extra)
	}
}

func TestParseDescription_NameOnly(t *testing.T) {
	name, extra := ParseDescription("Elder Smith")
	if name != "Elder Smith" {
		t.Errorf("name = %q, want %q", name, "Elder Smith")
	}
	if len(extra) != 0 {
		t.Errorf("extra = %v, want empty", extra)
	}
}

func TestParseDescription_LeadingBlankLines(t *testing.T) {
	name, extra := ParseDescription("\n\n  Sister Jones  \nFiji Suva Mission")
	if name != "Sister Jones" {
		t.Errorf("name = %q, want %q", name, "Sister Jones")
	}
	want := []string{"Fiji Suva Mission"}
	if !reflect.DeepEqual(extra, want) {
		t.Errorf("extra = %v, want %v", extra, want)
	}
}

func TestParseDescription_WindowsLineEndings(t *testing.T) {
	name, extra := ParseDescription("Jane Doe\r\nUtah Salt Lake Mission")
	if name != "Jane Doe" {
		t.Errorf("name = %q, want %q", name, "Jane Doe")
	}
	want := []string{"Utah Salt Lake Mission"}
	if !reflect.DeepEqual(extra, want) {
		t.Errorf("extra = %v, want %v", extra, want)
	}
}

func TestParseDescription_InteriorBlankLinesDropped(t *testing.T) {
	name, extra := ParseDescription("Jane Doe\n\nUtah Salt Lake Mission\n\n2023–2025")
	if name != "Jane Doe" {
		t.Errorf("name = %q, want %q", name, "Jane Doe")
	}
	want := []string{"Utah Salt Lake Mission", "2023–2025"}
	if !reflect.DeepEqual(extra, want) {
		t.Errorf("extra = %v, want %v", extra, want)
	}
}
