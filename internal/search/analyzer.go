package search

import (
	"fmt"

	"github.com/blevesearch/bleve/v2/analysis"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/token/porter"
	"github.com/blevesearch/bleve/v2/analysis/token/stop"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
)

// statuteBoilerplate occurs in most section texts and does not tell sections apart.
var statuteBoilerplate = []string{
	"whoever", "shall", "punished", "punishment", "punishable",
	"imprisonment", "imprisoned", "description", "term", "extend", "extends",
	"year", "years", "fine", "liable", "either", "may", "also",
	"commit", "commits", "committed", "section", "sec", "ipc", "code", "penal", "indian",
}

// offenceAliases maps everyday words for an offence to the word the statute uses.
// Both are kept, the alias is added after the original term.
var offenceAliases = map[string]string{
	"steal": "theft", "steals": "theft", "stealing": "theft", "stole": "theft", "stolen": "theft",
	"thief": "theft", "thieves": "theft", "snatched": "theft", "snatching": "theft",
	"pickpocket": "theft", "pickpocketed": "theft", "shoplifting": "theft",

	"rob": "robbery", "robbed": "robbery", "robbing": "robbery", "robber": "robbery",
	"looted": "robbery", "mugged": "robbery",

	"kill": "murder", "killed": "murder", "killing": "murder", "killer": "murder",
	"murdered": "murder", "slain": "murder",

	"cheat": "cheating", "cheated": "cheating", "cheats": "cheating", "scam": "cheating",
	"scammed": "cheating", "fraud": "cheating", "fraudulent": "cheating", "conned": "cheating",
	"duped": "cheating", "deceived": "cheating",

	"threat": "intimidation", "threats": "intimidation", "threatened": "intimidation",
	"threatening": "intimidation",

	"beat": "hurt", "beaten": "hurt", "injured": "hurt", "punched": "hurt", "slapped": "hurt",
	"attacked": "assault", "assaulted": "assault",

	"raped":     "rape",
	"kidnapped": "kidnapping", "abducted": "kidnapping", "abduction": "kidnapping",
	"burgled": "trespass", "burglary": "trespass",
	"defamed": "defamation", "slandered": "defamation", "libel": "defamation",
	"embezzled": "breach", "embezzlement": "breach", "misappropriated": "breach",
}

// termAnalyzer turns free text into the stemmed content terms the local
// embedder hashes. It holds no mutable state and is safe for concurrent use.
type termAnalyzer struct {
	tokenizer analysis.Tokenizer
	lower     analysis.TokenFilter
	stop      analysis.TokenFilter
	stem      analysis.TokenFilter
}

func newTermAnalyzer() (*termAnalyzer, error) {
	stopWords := analysis.NewTokenMap()
	if err := stopWords.LoadBytes(en.EnglishStopWords); err != nil {
		return nil, fmt.Errorf("load english stop words: %w", err)
	}
	for _, w := range statuteBoilerplate {
		stopWords.AddToken(w)
	}

	return &termAnalyzer{
		tokenizer: unicode.NewUnicodeTokenizer(),
		lower:     lowercase.NewLowerCaseFilter(),
		stop:      stop.NewStopTokensFilter(stopWords),
		stem:      porter.NewPorterStemmer(),
	}, nil
}

var contentTerms = func() *termAnalyzer {
	a, err := newTermAnalyzer()
	if err != nil {
		panic(err)
	}
	return a
}()

// Terms returns the content terms of text in order. Stop words and statute
// boilerplate are dropped, offence aliases are appended after the word they
// expand, and every term is stemmed.
func (a *termAnalyzer) Terms(text string) []string {
	tokens := a.stop.Filter(a.lower.Filter(a.tokenizer.Tokenize([]byte(text))))

	expanded := make(analysis.TokenStream, 0, len(tokens))
	for _, tok := range tokens {
		expanded = append(expanded, tok)
		if alias, ok := offenceAliases[string(tok.Term)]; ok {
			expanded = append(expanded, &analysis.Token{
				Term:     []byte(alias),
				Start:    tok.Start,
				End:      tok.End,
				Position: tok.Position,
				Type:     analysis.AlphaNumeric,
			})
		}
	}

	expanded = a.stem.Filter(expanded)
	terms := make([]string, 0, len(expanded))
	for _, tok := range expanded {
		terms = append(terms, string(tok.Term))
	}
	return terms
}
