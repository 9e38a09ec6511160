// Package main provides the program for fine-tuning a pretrained sentence pair
// classifier on pseudo labeled fake news pairs. It trains with gradient
// accumulation and optional half precision, evaluates after every epoch,
// keeps the checkpoint with the lowest dev loss and writes the dev set class
// probabilities as an agreed, disagreed, unrelated table.
package main
