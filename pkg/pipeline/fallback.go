package pipeline

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/harunnryd/niaga/pkg/commerce"
	"github.com/harunnryd/niaga/pkg/dispatch"
	"github.com/harunnryd/niaga/pkg/intent"
)

// Deterministic user-facing texts. Everything here is reachable only when
// the model produced nothing usable, so the texts must stand on their own.

func isIndonesian(lang string) bool {
	return lang == "id" || lang == "id-ID" || lang == "indonesian"
}

func disambiguationMessage(lang string) string {
	if isIndonesian(lang) {
		return "Terima kasih atas gambarnya! Apakah Anda ingin mencari produk serupa, atau ada masalah dengan pesanan Anda?"
	}
	return "Thanks for the image! Would you like me to find similar products, or is something wrong with your order?"
}

func apologyMessage(lang string) string {
	if isIndonesian(lang) {
		return "Maaf, terjadi kendala saat memproses permintaan Anda. Silakan coba lagi, atau saya bisa menghubungkan Anda dengan tim kami."
	}
	return "Sorry, something went wrong while processing your request. Please try again, or I can connect you with our team."
}

func clarificationMessage(lang string) string {
	if isIndonesian(lang) {
		return "Maaf, saya kurang menangkap maksud Anda. Bisa dijelaskan lebih detail?"
	}
	return "Sorry, I didn't quite catch that. Could you tell me a bit more about what you need?"
}

func defaultClosingLine(lang string) string {
	if isIndonesian(lang) {
		return "Terima kasih sudah menghubungi kami. Sampai jumpa!"
	}
	return "Thanks for reaching out. Have a great day!"
}

// functionReply renders a function result as user-facing text. Raw
// payloads from unknown functions that still look like JSON yield ""
// so the fallback cascade continues instead of leaking a fragment.
func functionReply(name, output, lang string) string {
	switch name {
	case dispatch.FuncOrderStatus:
		return orderReply(output, "", lang)
	case dispatch.FuncCreateTicket:
		return ticketReply(output, lang)
	}
	trimmed := strings.TrimSpace(output)
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		return ""
	}
	return trimmed
}

func orderReply(output, orderNo, lang string) string {
	var result commerce.LookupResult
	if err := json.Unmarshal([]byte(output), &result); err != nil {
		return ""
	}
	if !result.Found || result.Order == nil {
		return orderNotFoundMessage(orderNo, lang)
	}
	o := result.Order
	if isIndonesian(lang) {
		return fmt.Sprintf("Pesanan %s saat ini berstatus %s. Ada lagi yang bisa saya bantu?", o.Number, o.Status)
	}
	return fmt.Sprintf("Your order %s is currently %s. Is there anything else I can help with?", o.Number, o.Status)
}

func orderNotFoundMessage(orderNo, lang string) string {
	if isIndonesian(lang) {
		if orderNo != "" {
			return fmt.Sprintf("Maaf, saya tidak menemukan pesanan dengan nomor %s. Bisa dicek kembali nomornya?", orderNo)
		}
		return "Maaf, saya tidak menemukan pesanan tersebut. Bisa dicek kembali nomornya?"
	}
	if orderNo != "" {
		return fmt.Sprintf("Sorry, I couldn't find an order matching %s. Could you double-check the number?", orderNo)
	}
	return "Sorry, I couldn't find that order. Could you double-check the number?"
}

func ticketReply(output, lang string) string {
	var res struct {
		TicketID string `json:"ticket_id"`
	}
	if err := json.Unmarshal([]byte(output), &res); err != nil || res.TicketID == "" {
		return ""
	}
	if isIndonesian(lang) {
		return fmt.Sprintf("Tiket keluhan Anda sudah dibuat dengan nomor %s. Tim kami akan segera menindaklanjuti.", res.TicketID)
	}
	return fmt.Sprintf("Your complaint ticket %s has been created. Our team will follow up with you shortly.", res.TicketID)
}

func trivialReply(kind intent.TrivialKind, lang string) string {
	if isIndonesian(lang) {
		switch kind {
		case intent.TrivialGreeting:
			return "Halo! Ada yang bisa saya bantu?"
		case intent.TrivialThanks:
			return "Sama-sama! Ada lagi yang bisa saya bantu?"
		case intent.TrivialGoodbye:
			return "Terima kasih, sampai jumpa!"
		}
	}
	switch kind {
	case intent.TrivialGreeting:
		return "Hello! How can I help you today?"
	case intent.TrivialThanks:
		return "You're welcome! Anything else I can help with?"
	case intent.TrivialGoodbye:
		return "Thank you, goodbye!"
	}
	return ""
}

var farewellMarkers = []string{
	"goodbye", "bye", "see you", "have a great", "take care",
	"sampai jumpa", "terima kasih sudah", "selamat tinggal", "dadah",
}
