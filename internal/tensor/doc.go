// Package tensor provides the float32 tensor type the transformer stacks are
// built on.
//
// A Tensor owns a contiguous row-major []float32 and a Shape. Element-wise
// arithmetic, broadcasting, reshaping and reductions are implemented here;
// matrix multiplication is delegated to a Backend so that the heavy kernel
// can be swapped (see internal/backend/cpu).
//
// Shape violations panic with a message naming the operation. Fallible
// construction from caller data (FromSlice, NewIDs) returns an error.
package tensor
