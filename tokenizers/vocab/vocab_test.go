package vocab

import "testing"

func gpt2Source() Source {
	tokens := []string{
		"<|endoftext|>", // 0 -> catalogued EOT synonym, populates EOS slot
		"!", "\"", "#",
		"Ġhello", "Ġworld",
	}
	return Source{
		ModelName: "gpt2",
		Tokens:    tokens,
		TokenTypes: []int32{
			int32(Control), int32(Normal), int32(Normal), int32(Normal),
			int32(Normal), int32(Normal),
		},
	}
}

func TestLoadGPT2Basics(t *testing.T) {
	v, err := Load(gpt2Source())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if v.VocabType() != TypeBPE {
		t.Fatalf("VocabType() = %v, want BPE", v.VocabType())
	}
	if v.NTokens() != 6 {
		t.Fatalf("NTokens() = %d, want 6", v.NTokens())
	}
	if v.EOS == NullToken {
		t.Fatalf("EOS slot not populated from <|endoftext|> catalogue entry")
	}
	if id := v.TextToToken("<|endoftext|>"); id != v.EOS {
		t.Fatalf("TextToToken(<|endoftext|>) = %d, want %d", id, v.EOS)
	}
	if !v.IsEOG(v.EOS) {
		t.Errorf("EOS token should be in the EOG set")
	}
}

func TestBuildSpecialTokensSortedByLength(t *testing.T) {
	src := Source{
		ModelName: "gpt2",
		Tokens:    []string{"<|im_end|>", "<end_of_turn>", "x"},
		TokenTypes: []int32{
			int32(Control), int32(Control), int32(Normal),
		},
	}
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	special := v.SpecialTokens()
	if len(special) != 2 {
		t.Fatalf("SpecialTokens() len = %d, want 2", len(special))
	}
	// "<end_of_turn>" (13 chars) is longer than "<|im_end|>" (10 chars).
	got := v.idToToken[special[0]].Text
	if got != "<end_of_turn>" {
		t.Errorf("first special token = %q, want the longer literal", got)
	}
}

func TestFindBPERank(t *testing.T) {
	src := Source{
		ModelName: "gpt2",
		Tokens:    []string{"a", "b", "ab"},
		Merges:    []string{"a b"},
	}
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if r := v.FindBPERank("a", "b"); r != 0 {
		t.Errorf("FindBPERank(a,b) = %d, want 0", r)
	}
	if r := v.FindBPERank("b", "a"); r != -1 {
		t.Errorf("FindBPERank(b,a) = %d, want -1", r)
	}
}

func TestByteToTokenBPE(t *testing.T) {
	src := Source{
		ModelName: "gpt2",
		Tokens:    []string{"!"}, // byte_to_utf8('!') == '!'
	}
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	id, err := v.ByteToToken('!')
	if err != nil {
		t.Fatalf("ByteToToken('!'): %v", err)
	}
	if v.idToToken[id].Text != "!" {
		t.Errorf("ByteToToken('!') resolved to %q, want \"!\"", v.idToToken[id].Text)
	}
	if _, err := v.ByteToToken('a'); err == nil {
		t.Errorf("expected ErrMissingByteToken for an unmapped byte")
	}
}

func TestByteToTokenSPM(t *testing.T) {
	src := Source{
		ModelName: "llama",
		Tokens:    []string{"<unk>", "<s>", "</s>", "<0x41>"},
	}
	v, err := Load(src)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	id, err := v.ByteToToken('A')
	if err != nil {
		t.Fatalf("ByteToToken('A'): %v", err)
	}
	if v.idToToken[id].Text != "<0x41>" {
		t.Errorf("ByteToToken('A') resolved to %q, want <0x41>", v.idToToken[id].Text)
	}
}

func TestLoadRejectsUnknownModelName(t *testing.T) {
	_, err := Load(Source{ModelName: "bert", Tokens: []string{"a"}})
	if err == nil {
		t.Fatal("expected error for unsupported model_name")
	}
}

func TestLoadRejectsEmptyTokens(t *testing.T) {
	_, err := Load(Source{ModelName: "gpt2"})
	if err == nil {
		t.Fatal("expected error for empty token list")
	}
}

func TestGetBoolPrecedence(t *testing.T) {
	yes := true
	if !getBool(&yes, false) {
		t.Errorf("metadata=true should win over family default")
	}
	if getBool(nil, false) {
		t.Errorf("nil metadata should fall back to family default")
	}
	if !getBool(nil, true) {
		t.Errorf("nil metadata should fall back to family default")
	}
}

func TestLoadWarnsOnUncatalogedControlToken(t *testing.T) {
	var warnings []string
	src := Source{
		ModelName: "gpt2",
		Tokens:    []string{"<|mystery|>", "x"},
		TokenTypes: []int32{
			int32(Control), int32(Normal),
		},
		Warnf: func(format string, args ...any) {
			warnings = append(warnings, format)
		},
	}
	if _, err := Load(src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning for the uncatalogued Control token, got %v", warnings)
	}
}

func TestLoadDoesNotWarnForCatalogedControlToken(t *testing.T) {
	var warnings []string
	src := gpt2Source()
	src.Warnf = func(format string, args ...any) {
		warnings = append(warnings, format)
	}
	if _, err := Load(src); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(warnings) != 0 {
		t.Fatalf("expected no warnings for a catalogued EOS token, got %v", warnings)
	}
}

func TestAddBOSAddEOSFamilyDefaults(t *testing.T) {
	llama, err := Load(Source{ModelName: "llama", Tokens: []string{"<unk>"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !llama.AddBOS {
		t.Errorf("llama family default for add_bos_token should be true")
	}
	if llama.AddEOS {
		t.Errorf("llama family default for add_eos_token should be false")
	}

	gpt2, err := Load(Source{ModelName: "gpt2", Tokens: []string{"a"}})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if gpt2.AddBOS {
		t.Errorf("gpt2 family default for add_bos_token should be false")
	}
}
