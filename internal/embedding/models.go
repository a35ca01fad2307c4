package embedding

// fastEmbedDimensions lists output dimensions of the models fastembed can load,
// by both their friendly and fastembed names.
var fastEmbedDimensions = map[string]int{
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-small-en":                      384,
	"BAAI/bge-base-en-v1.5":                  768,
	"BAAI/bge-base-en":                       768,
	"BAAI/bge-small-zh-v1.5":                 512,
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-small-en":                      384,
	"fast-bge-base-en-v1.5":                  768,
	"fast-bge-base-en":                       768,
	"fast-bge-small-zh-v1.5":                 512,
	"fast-all-MiniLM-L6-v2":                  384,
}

// FastEmbedModelDimension returns the output dimension of a known fastembed model.
func FastEmbedModelDimension(model string) (int, bool) {
	d, ok := fastEmbedDimensions[model]
	return d, ok
}
