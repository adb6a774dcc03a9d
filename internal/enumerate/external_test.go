package enumerate

import (
	"context"
	"errors"
	"testing"

	"github.com/pipewatch/pipewatch/internal/pipes"
)

const sampleListing = "PipeList v1.02 - Lists open named pipes\r\n" +
	"Copyright (C) 2005-2016\r\n" +
	"\r\n" +
	"Pipe Name                                    Instances       Max Instances\r\n" +
	"---------                                    ---------       -------------\r\n" +
	"InitShutdown                                          3              -1\r\n" +
	"lsass                                                 4              -1\r\n" +
	"Winsock2\\CatalogChangeListener-3a0-0                  1               1\r\n" +
	"\r\n"

func TestParseListing(t *testing.T) {
	infos := parseListing(sampleListing)
	if len(infos) != 3 {
		t.Fatalf("parsed %d rows, want 3: %+v", len(infos), infos)
	}

	want := []pipes.Info{
		{Name: "InitShutdown", CurrentInstances: 3, MaxInstances: -1},
		{Name: "lsass", CurrentInstances: 4, MaxInstances: -1},
		{Name: `Winsock2\CatalogChangeListener-3a0-0`, CurrentInstances: 1, MaxInstances: 1},
	}
	for i, w := range want {
		got := infos[i]
		if got.Name != w.Name {
			t.Errorf("row %d name = %q, want %q", i, got.Name, w.Name)
		}
		if got.CurrentInstances != w.CurrentInstances || got.MaxInstances != w.MaxInstances {
			t.Errorf("row %d counts = %d/%d, want %d/%d",
				i, got.CurrentInstances, got.MaxInstances, w.CurrentInstances, w.MaxInstances)
		}
		if got.Path != pipes.FullPath(w.Name) {
			t.Errorf("row %d path = %q", i, got.Path)
		}
	}
}

func TestParseListingSkipsEverythingBeforeRule(t *testing.T) {
	out := "looks like data    5    5\nother noise\n------\nreal    1    2\n"
	infos := parseListing(out)
	if len(infos) != 1 || infos[0].Name != "real" {
		t.Fatalf("want only the post-rule row, got %+v", infos)
	}
}

func TestParseListingNoRule(t *testing.T) {
	if infos := parseListing("header\nrow    1    2\n"); len(infos) != 0 {
		t.Fatalf("output without a rule line should parse to nothing, got %+v", infos)
	}
}

func TestParseListingNameWithSingleSpace(t *testing.T) {
	infos := parseListing("---\nmy pipe name    2    10\n")
	if len(infos) != 1 {
		t.Fatalf("parsed %d rows, want 1", len(infos))
	}
	if infos[0].Name != "my pipe name" {
		t.Errorf("single spaces must stay in the name, got %q", infos[0].Name)
	}
	if infos[0].CurrentInstances != 2 || infos[0].MaxInstances != 10 {
		t.Errorf("counts = %d/%d, want 2/10", infos[0].CurrentInstances, infos[0].MaxInstances)
	}
}

func TestParseListingNonNumericCounts(t *testing.T) {
	infos := parseListing("---\nodd    many    lots\n")
	if len(infos) != 1 {
		t.Fatalf("parsed %d rows, want 1", len(infos))
	}
	if infos[0].CurrentInstances != pipes.UnknownInstances || infos[0].MaxInstances != pipes.UnknownInstances {
		t.Errorf("non-numeric counts must map to the unknown sentinel, got %d/%d",
			infos[0].CurrentInstances, infos[0].MaxInstances)
	}
}

func TestParseListingNameOnlyRow(t *testing.T) {
	infos := parseListing("---\nbare\n")
	if len(infos) != 1 {
		t.Fatalf("parsed %d rows, want 1", len(infos))
	}
	if infos[0].CurrentInstances != pipes.UnknownInstances || infos[0].MaxInstances != pipes.UnknownInstances {
		t.Errorf("missing columns must map to the unknown sentinel, got %+v", infos[0])
	}
}

func TestParseListingExtraColumnsIgnored(t *testing.T) {
	infos := parseListing("---\nwide    1    2    extra    junk\n")
	if len(infos) != 1 {
		t.Fatalf("parsed %d rows, want 1", len(infos))
	}
	if infos[0].CurrentInstances != 1 || infos[0].MaxInstances != 2 {
		t.Errorf("counts = %d/%d, want 1/2", infos[0].CurrentInstances, infos[0].MaxInstances)
	}
}

func TestIsRule(t *testing.T) {
	cases := []struct {
		line string
		want bool
	}{
		{"---------", true},
		{"---------    ---------   -------------", true},
		{"  ------  ", true},
		{"--", false},
		{"-1", false},
		{"", false},
		{"Sysinternals - www.sysinternals.com", false},
		{"--- header ---", false},
	}
	for _, c := range cases {
		if got := isRule(c.line); got != c.want {
			t.Errorf("isRule(%q) = %v, want %v", c.line, got, c.want)
		}
	}
}

func TestExternalToolMissing(t *testing.T) {
	e := NewExternal("pipewatch-test-no-such-tool", nil)

	infos, err := e.Pipes(context.Background())
	if !errors.Is(err, ErrToolNotFound) {
		t.Fatalf("err = %v, want ErrToolNotFound", err)
	}
	if infos != nil {
		t.Errorf("a failed run must not return a partial listing: %+v", infos)
	}
}

func TestExternalDefaults(t *testing.T) {
	e := NewExternal("", nil)
	if e.tool != DefaultTool {
		t.Errorf("tool = %q, want %q", e.tool, DefaultTool)
	}
	if e.Name() != MethodExternal {
		t.Errorf("Name() = %q", e.Name())
	}
}
