package sentences

// honorifics never end a sentence when more text follows ("Dr. Smith").
var honorifics = []string{
	"dr", "mr", "mrs", "ms", "prof", "st", "jr", "sr", "drs",
}

// medicalAbbreviations end a sentence only when the lookahead does not
// indicate a continuation (next char lowercase, or next token numeric).
// Entries are lowercase without the final period.
var medicalAbbreviations = []string{
	// units
	"mg", "mcg", "ml", "kg", "g", "mm", "cm", "l", "dl", "meq", "mmol", "iu", "u", "oz", "tsp", "tbsp", "lb", "lbs",
	// routes and frequencies
	"p.o", "po", "b.i.d", "bid", "t.i.d", "tid", "q.i.d", "qid", "q.d", "qd", "q.h.s", "qhs", "q", "q.o.d",
	"prn", "p.r.n", "i.v", "iv", "i.m", "im", "s.c", "sc", "subq", "s.l", "sl", "p.r", "a.c", "p.c", "h.s",
	// dosage forms
	"tab", "tabs", "cap", "caps", "inj", "sol", "susp", "supp",
	// clinical shorthand
	"hx", "dx", "tx", "rx", "sx", "fx", "pt", "pts", "y.o", "yo", "c/o", "s/p", "h/o", "w/",
	// time
	"yr", "yrs", "wk", "wks", "mo", "mos", "hr", "hrs", "h", "min", "mins", "sec", "a.m", "p.m",
	// general
	"approx", "vs", "etc", "e.g", "i.e", "no", "nos", "fig", "dept", "cont", "ca", "est", "max", "avg",
}

func wordSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
