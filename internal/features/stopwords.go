package features

// englishStopWords is the default filter applied during tokenization. CI
// error text is dominated by these function words, which carry no signal
// about what actually broke.
var englishStopWords = []string{
	"a", "about", "above", "after", "again", "all", "am", "an", "and",
	"any", "are", "as", "at", "be", "because", "been", "before", "being",
	"below", "between", "both", "but", "by", "could", "did", "do", "does",
	"doing", "down", "during", "each", "few", "for", "from", "further",
	"had", "has", "have", "having", "he", "her", "here", "hers", "him",
	"his", "how", "i", "if", "in", "into", "is", "it", "its", "just",
	"me", "more", "most", "my", "no", "nor", "not", "of", "off", "on",
	"once", "only", "or", "other", "our", "out", "over", "own", "same",
	"she", "so", "some", "such", "than", "that", "the", "their", "them",
	"then", "there", "these", "they", "this", "those", "through", "to",
	"too", "under", "until", "up", "very", "was", "we", "were", "what",
	"when", "where", "which", "while", "who", "why", "will", "with",
	"you", "your",
}

func defaultStopWords() map[string]struct{} {
	stop := make(map[string]struct{}, len(englishStopWords))
	for _, w := range englishStopWords {
		stop[w] = struct{}{}
	}
	return stop
}
