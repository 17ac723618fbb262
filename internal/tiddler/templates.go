package tiddler

import "text/template"

func parse(name, text string) *template.Template {
	return template.Must(template.New(name).Delims("{%", "%}").Parse(text))
}

var bookTmpl = parse("book", `created: {%.Created%}
creator: {%.Creator%}
modifier: {%.Creator%}
modified: {%.Created%}
tags: book
title: {%.Book%}
author: {%.Author%}
nbr_of_highlights: 1
type: text/vnd.tiddlywiki

\import [tag[macro]]

//[the notes from the book were retrieved with [[marg]], with the purpose of aiding to create a map of the ideas the book left me. The full list of book highlights can be found [[here|fhl-{%.Book%}]].]//

<div style="float: left; margin: 0 40px 8px 0;
                  width: 30%;
                  justify-content: space-between;
                  align-content: space-between;
                  max-width: 200px">
<$image source={{!!book-cover-tiddler}}/>
</div>
`)

var fhlTmpl = parse("fhl", `created: {%.Created%}
creator: {%.Creator%}
modifier: {%.Creator%}
modified: {%.Created%}
tags: fhl
title: fhl-{%.Book%}
type: text/vnd.tiddlywiki

\import [tag[macro]]

<$list filter="[tag[book-quote]tag[{%.Book%}]sort[quote-order]]">
   <$macrocall $name="renderClickableTitle" tiddler=<<currentTiddler>> />
</$list>
`)

var highlightTmpl = parse("highlight", `created: {%.Created%}
creator: {%.Creator%}
modifier: {%.Creator%}
modified: {%.Created%}
tags: {%.Tags%}
title: {%.Title%}
chapter: {%.Chapter%}
type: text/vnd.tiddlywiki
quote-order: {%.Order%}
{%if .Comment%}
{%.Comment%}
{%end%}
<<<
{%.Quote%}
<<<
`)
