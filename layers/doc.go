// Package layers holds the pieces both model variants share: token and
// positional embeddings, a linear projection, dropout, the sequence cross
// entropy loss and categorical sampling.
//
// Unlike the transformer modules these layers keep no forward cache; the
// caller passes the forward input back into Backward. The recurrent model
// applies them once per timestep and would otherwise overwrite the cache.
package layers
