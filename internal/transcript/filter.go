package transcript

// LastExchanges restricts interactions to the tail beginning at the n-th
// most recent prompt and reports how many interactions were dropped. A
// non-positive n, or an n exceeding the number of prompts, returns the
// input unchanged.
func LastExchanges(interactions []Interaction, n int) ([]Interaction, int) {
	if n <= 0 {
		return interactions, 0
	}
	seen := 0
	for i := len(interactions) - 1; i >= 0; i-- {
		if interactions[i].Type != InteractionPrompt {
			continue
		}
		seen++
		if seen == n {
			return interactions[i:], i
		}
	}
	return interactions, 0
}
