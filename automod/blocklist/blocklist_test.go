package blocklist

import (
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExactStrings(t *testing.T) {
	assert := assert.New(t)
	r := DefaultRegistry()

	assert.True(r.IsSpam("****"))
	assert.True(r.IsSpam("  **** "))
	assert.True(r.IsSpam("* * * *")) // matches after whitespace strip
	assert.True(r.IsSpam("~~~~"))
	assert.False(r.IsSpam("hello world"))
	assert.False(r.IsSpam(""))
	assert.False(r.IsSpam("   "))
}

func TestInvisibleDensity(t *testing.T) {
	assert := assert.New(t)
	r := DefaultRegistry()

	assert.True(r.IsSpam(strings.Repeat("\u200B", 20)))
	// interior NBSP flood is caught by density even though the run patterns skip NBSP
	assert.True(r.IsSpam("." + strings.Repeat("\u00A0", 19) + "."))
	// mostly-visible content is fine
	assert.False(r.IsSpam("hello\u200Bworld this is a normal message"))
}

func TestPatternFamilies(t *testing.T) {
	assert := assert.New(t)
	r := DefaultRegistry()

	// zero-width joiner run
	assert.True(r.IsSpam("a\u200D\u200D\u200Db"))
	// diacritic stacking
	assert.True(r.IsSpam("z" + strings.Repeat("\u0301", 8)))
	assert.False(r.IsSpam("café")) // a single combining mark is fine
	// confusable glyph run
	assert.True(r.IsSpam(glyphBismillah + glyphBismillah + glyphBismillah))
}

func TestFormattingFlood(t *testing.T) {
	assert := assert.New(t)
	r := DefaultRegistry()

	assert.True(r.IsSpam("**__``||~~"))
	assert.True(r.IsSpam("** ** **"))
	assert.False(r.IsSpam("**bold** and __underline__"))
	// only two pairs present
	assert.False(r.IsSpam("**__"))
}

func TestEmojiFlood(t *testing.T) {
	assert := assert.New(t)
	r := DefaultRegistry()

	assert.True(r.IsSpam(strings.Repeat("\U0001F600", 15)))
	// varied emoji below the repeat bound are fine
	assert.False(r.IsSpam("\U0001F600\U0001F601\U0001F602\U0001F603 nice"))
}

func TestRuntimeExtension(t *testing.T) {
	assert := assert.New(t)
	r := DefaultRegistry()

	assert.False(r.IsSpam("buy cheap gems"))
	r.AddLiteral("buy cheap gems")
	assert.True(r.IsSpam("buy cheap gems"))

	assert.False(r.IsSpam("join discord.gg/aaaa now"))
	r.AddPattern(regexp.MustCompile(`discord\.gg/\w+`))
	assert.True(r.IsSpam("join discord.gg/aaaa now"))
}
