package utils

import (
	"github.com/abadojack/whatlanggo"
)

var whatLangOpts = whatlanggo.Options{
	Whitelist: map[whatlanggo.Lang]bool{
		whatlanggo.Eng: true,
		whatlanggo.Tur: true,
		whatlanggo.Deu: true,
		whatlanggo.Fra: true,
		whatlanggo.Spa: true,
		whatlanggo.Rus: true,
		whatlanggo.Cmn: true,
	},
}

func WhatLang(query string) string {
	return whatlanggo.DetectWithOptions(query, whatLangOpts).Lang.String()
}

// IsEnglish is the gate for prompt translation. Very short inputs are
// treated as English because detection is unreliable on them.
func IsEnglish(text string) bool {
	if len([]rune(text)) < 12 {
		return !hasTurkishLetters(text)
	}
	if hasTurkishLetters(text) {
		return false
	}
	info := whatlanggo.DetectWithOptions(text, whatLangOpts)
	return info.Lang == whatlanggo.Eng || info.Confidence < 0.2
}

func hasTurkishLetters(text string) bool {
	for _, r := range text {
		switch r {
		case 'ç', 'ğ', 'ı', 'ö', 'ş', 'ü', 'Ç', 'Ğ', 'İ', 'Ö', 'Ş', 'Ü':
			return true
		}
	}
	return false
}
