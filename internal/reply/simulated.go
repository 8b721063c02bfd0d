package reply

import (
	"context"
	"strings"
	"time"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

type cannedAnswer struct {
	keywords []string
	text     string
}

// Keywords are matched on the folded question, so they are written without
// accents. The first matching entry wins.
var cannedAnswers = []cannedAnswer{
	{
		keywords: []string{"reforma tributaria"},
		text:     "A Reforma Tributária (PEC 45/2019) propõe substituir cinco tributos (PIS, Cofins, IPI, ICMS e ISS) por um Imposto sobre Bens e Serviços (IBS) e um Imposto Seletivo. O objetivo é simplificar o sistema tributário brasileiro, reduzir a burocracia e aumentar a transparência.",
	},
	{
		keywords: []string{"imposto", "tributo"},
		text:     "Os principais impostos no Brasil incluem o ICMS (estadual), ISS (municipal), IPI, PIS e COFINS (federais). A reforma tributária visa unificar alguns destes tributos para simplificar o sistema.",
	},
	{
		keywords: []string{"nota fiscal", "nfe", "nf-e"},
		text:     "A Nota Fiscal Eletrônica (NF-e) é um documento digital emitido e armazenado eletronicamente para documentar operações de circulação de mercadorias ou prestações de serviços. É obrigatória para a maioria das empresas.",
	},
	{
		keywords: []string{"mei", "microempreendedor"},
		text:     "O Microempreendedor Individual (MEI) é uma categoria empresarial com faturamento anual de até R$ 81.000 e possui tratamento tributário simplificado, pagando apenas um valor fixo mensal que inclui INSS, ISS e ICMS.",
	},
}

const defaultAnswer = "Entendi sua pergunta. A tributação brasileira é um sistema complexo com diversos impostos federais, estaduais e municipais. Posso ajudar com informações específicas sobre algum aspecto particular da tributação?"

// Simulated answers from a fixed keyword table without any network call.
// It is meant for local development and demos.
type Simulated struct {
	// Delay is waited before answering; zero answers immediately.
	Delay time.Duration
}

// Ask implements Replier.
func (s Simulated) Ask(ctx context.Context, text, _, _ string) (string, error) {
	start := time.Now()
	if s.Delay > 0 {
		t := time.NewTimer(s.Delay)
		defer t.Stop()
		select {
		case <-ctx.Done():
			err := &Error{Kind: Unavailable, Err: ctx.Err()}
			observe(err, time.Since(start))
			return "", err
		case <-t.C:
		}
	}
	observe(nil, time.Since(start))
	return Answer(text), nil
}

// Answer returns the canned answer for question.
func Answer(question string) string {
	q := fold(question)
	words := strings.FieldsFunc(q, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '-'
	})
	for _, a := range cannedAnswers {
		for _, kw := range a.keywords {
			if matches(q, words, kw) {
				return a.text
			}
		}
	}
	return defaultAnswer
}

// matches treats multi-word keywords as substrings and single words as
// whole-word prefixes, so "mei" does not fire on "meio".
func matches(q string, words []string, kw string) bool {
	if strings.Contains(kw, " ") {
		return strings.Contains(q, kw)
	}
	for _, w := range words {
		if w == kw || (len(kw) > 4 && strings.HasPrefix(w, kw)) {
			return true
		}
	}
	return false
}

// fold lower-cases s and strips combining marks.
func fold(s string) string {
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	return strings.ToLower(out)
}
