// Package cachedbert implements BERT-architecture transformer stacks with an
// attention key/value cache.
//
// Two heads share the same layers:
//   - DecoderLM: causal stack with a vocabulary projection tied to the word
//     embeddings (GPT-2 style language model).
//   - Encoder: bidirectional stack with segment embeddings (BERT/RoBERTa).
//
// Both accept a StackCache from a previous call and return the extended
// cache, so a sequence can be processed in one call or one token at a time
// with identical results:
//
//	model := cachedbert.NewDecoderLM(cachedbert.GPT2SmallConfig(), cpu.New())
//	logits, past := model.Forward(prompt, nil, nil)
//	for step := 0; step < n; step++ {
//	    next := pick(logits)
//	    logits, past = model.Forward(next, nil, past)
//	}
//
// Shape and range violations (token ids outside the vocabulary, positions
// past max_position_embeddings, malformed caches) panic. Configuration and
// weight loading problems are returned as errors.
package cachedbert
