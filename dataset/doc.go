// Package dataset loads feature tables from delimited text.
//
// Each record after the optional header contributes one point. A fixed
// number of leading and trailing columns (row ids, class labels) are
// dropped before the remaining fields are parsed as float64:
//
//	Id,SepalLength,SepalWidth,PetalLength,PetalWidth,Species
//	1,5.1,3.5,1.4,0.2,Iris-setosa
//
// with DefaultOptions yields the point [5.1 3.5 1.4 0.2].
//
// Files may be compressed; by default the codec is chosen from the name
// suffix (.gz, .zst, .lz4).
package dataset
