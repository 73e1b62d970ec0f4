package link_test

import (
	"encoding/binary"
	"strings"
	"testing"

	"golang.org/x/tools/txtar"

	"svm/internal/decode"
	"svm/internal/hash"
	"svm/internal/pipeline"
	"svm/internal/srcbc"
)

// buildObject encodes the smallest object file the container format
// (spec §6.1) allows: no data section, one Local function with an
// unbounded capability requirement (so its forward declaration needs
// nothing but Cap/Func/Lced) and a body that just pushes zero and
// halts.
func buildObject(label string) []byte {
	var b []byte
	b = binary.LittleEndian.AppendUint32(b, 0)
	b = binary.LittleEndian.AppendUint32(b, 1)

	b = decode.EncodeString(b, label)
	b = decode.EncodeVisibility(b, srcbc.Visibility{Kind: srcbc.Local})
	b = decode.EncodeOp(b, srcbc.Op{Tag: srcbc.OpCap})
	b = decode.EncodeOp(b, srcbc.Op{Tag: srcbc.OpFunc, N: 0})
	b = decode.EncodeOp(b, srcbc.Op{Tag: srcbc.OpLced})

	b = decode.EncodeString(b, label)
	b = decode.EncodeOp(b, srcbc.Op{Tag: srcbc.OpLit, Int32: 0})
	b = decode.EncodeOp(b, srcbc.Op{Tag: srcbc.OpHalt})
	return b
}

// TestLinkFixtureArchiveRoundTrips packs two synthetic object files and
// their linked image's content hash into a golang.org/x/tools/txtar
// archive (SPEC_FULL §10's golden-fixture format: "a single .txtar file
// holds several synthetic object files plus the expected linked-image
// hash"), then checks that parsing the archive back out and relinking
// its two object files reproduces the hash recorded alongside them.
func TestLinkFixtureArchiveRoundTrips(t *testing.T) {
	obj1 := buildObject("f1")
	obj2 := buildObject("f2")

	linked, err := pipeline.LinkAll([][]byte{obj1, obj2})
	if err != nil {
		t.Fatalf("linking the fixture objects failed: %v", err)
	}
	wantHash := hash.Image(linked)

	arc := &txtar.Archive{
		Comment: []byte("synthetic link fixture: two tiny object files and the linked image's content hash\n"),
		Files: []txtar.File{
			{Name: "obj1", Data: obj1},
			{Name: "obj2", Data: obj2},
			{Name: "expected_hash", Data: []byte(wantHash + "\n")},
		},
	}
	packed := txtar.Format(arc)
	reparsed := txtar.Parse(packed)

	if len(reparsed.Files) != 3 {
		t.Fatalf("expected 3 files in the reparsed archive, got %d", len(reparsed.Files))
	}
	byName := map[string][]byte{}
	for _, f := range reparsed.Files {
		byName[f.Name] = f.Data
	}

	relinked, err := pipeline.LinkAll([][]byte{byName["obj1"], byName["obj2"]})
	if err != nil {
		t.Fatalf("relinking the archive's round-tripped objects failed: %v", err)
	}
	if got := hash.Image(relinked); got != strings.TrimSpace(string(byName["expected_hash"])) {
		t.Fatalf("archive round-trip changed the linked image: got hash %s, archive recorded %s", got, strings.TrimSpace(string(byName["expected_hash"])))
	}
}
