// Package trainer orchestrates fine-tuning runs: the epoch loop with gradient
// accumulation and loss scaling, evaluation after each epoch, checkpointing of
// the best model by validation loss, and resuming from earlier checkpoints.
package trainer
