package intent

import "strings"

// Keyword tables are bilingual (English and Indonesian). Scoring counts
// distinct keyword hits over the recent context, not raw occurrences.

var complaintKeywords = []string{
	// en
	"damaged", "broken", "defect", "defective", "complaint", "complain",
	"wrong item", "missing", "refund", "return", "not working", "cracked",
	"torn", "spoiled", "late delivery", "never arrived",
	// id
	"rusak", "pecah", "cacat", "komplain", "keluhan", "salah barang",
	"kurang", "tidak lengkap", "refund", "retur", "pengembalian",
	"tidak berfungsi", "sobek", "basi", "telat", "belum sampai",
}

var productKeywords = []string{
	// en
	"price", "buy", "purchase", "order this", "how much", "in stock",
	"stock", "available", "size", "color", "similar", "recommend",
	"looking for", "catalog",
	// id
	"harga", "beli", "berapa", "stok", "tersedia", "ready", "ukuran",
	"warna", "mirip", "rekomendasi", "cari", "katalog", "pesan",
}

// botImagePrompts are assistant phrasings that ask the user to send a photo.
var botImagePrompts = []string{
	// en
	"please share", "please upload", "send a photo", "send us a photo",
	"send a picture", "attach a photo", "upload an image", "share an image",
	// id
	"kirim foto", "kirimkan foto", "unggah foto", "lampirkan foto",
	"upload foto", "fotonya", "kirim gambar",
}

// scoreKeywords returns the number of distinct table entries found in text.
func scoreKeywords(text string, table []string) int {
	lowered := strings.ToLower(text)
	score := 0
	for _, kw := range table {
		if strings.Contains(lowered, kw) {
			score++
		}
	}
	return score
}

// mentionsImageRequest reports whether an assistant turn asked for a photo.
func mentionsImageRequest(text string) bool {
	lowered := strings.ToLower(text)
	for _, phrase := range botImagePrompts {
		if strings.Contains(lowered, phrase) {
			return true
		}
	}
	return false
}
