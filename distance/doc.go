// Package distance provides the dissimilarity measure used to assign points
// to centroids.
//
// The only supported metric is Euclidean distance. The squared form is
// exposed separately because it is what inertia (within-cluster sum of
// squares) is built from.
//
// # Usage
//
//	d := distance.Euclidean(a, b)
//	sq := distance.SquaredEuclidean(a, b)
//	d, err := distance.EuclideanChecked(a, b) // fails on length mismatch
package distance
