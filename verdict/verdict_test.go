package verdict

import "testing"

func TestTranslateTable(t *testing.T) {
	cases := []struct {
		v    Verdict
		want Effective
	}{
		{Pass, EffectivePass},
		{Block, EffectiveBlock},
		{Replace, EffectivePass},
		{Whitelist, EffectivePass},
		{Blacklist, EffectiveBlock},
		{Ignore, EffectivePass},
		{Retry, EffectiveBlock},
	}

	for _, c := range cases {
		if got := Translate(c.v); got != c.want {
			t.Errorf("Translate(%v) = %v, want %v", c.v, got, c.want)
		}
	}
}

func TestTranslateRangeIsPassOrBlock(t *testing.T) {
	for v := Verdict(-1); v <= Max+5; v++ {
		if got := Translate(v); got != EffectivePass && got != EffectiveBlock {
			t.Errorf("Translate(%d) = %v, not in {Pass, Block}", v, got)
		}
	}
}

func TestClampOutOfRangeIsPass(t *testing.T) {
	if Clamp(Max) != Pass {
		t.Error("Clamp(Max) should be Pass")
	}
	if Clamp(Max+100) != Pass {
		t.Error("Clamp(Max+100) should be Pass")
	}
	if Clamp(-1) != Pass {
		t.Error("Clamp(-1) should be Pass")
	}
}
